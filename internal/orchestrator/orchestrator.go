// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package orchestrator owns the lifetimes of every core component: the
// event store, the scene-controller connection manager, the recording
// controller, the trigger engine, the distributor, the maintenance
// scheduler, and the auxiliary services. It wires them together behind a
// suture supervisor tree and drives the startup/shutdown sequence (§4.H).
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tkdvta/corevta/internal/auxiliary"
	"github.com/tkdvta/corevta/internal/config"
	"github.com/tkdvta/corevta/internal/distributor"
	"github.com/tkdvta/corevta/internal/logging"
	"github.com/tkdvta/corevta/internal/maintenance"
	"github.com/tkdvta/corevta/internal/metrics"
	"github.com/tkdvta/corevta/internal/pssparser"
	"github.com/tkdvta/corevta/internal/queue"
	"github.com/tkdvta/corevta/internal/recording"
	"github.com/tkdvta/corevta/internal/sceneclient"
	"github.com/tkdvta/corevta/internal/store"
	"github.com/tkdvta/corevta/internal/supervisor"
	"github.com/tkdvta/corevta/internal/supervisor/services"
	"github.com/tkdvta/corevta/internal/triggers"
	"github.com/tkdvta/corevta/internal/udpserver"
)

const streamProcessorWorkers = 4

// Orchestrator owns every long-running core component and the supervisor
// tree that runs them.
type Orchestrator struct {
	cfgManager *config.Manager
	store      *store.Store
	scenes     *sceneclient.Manager
	recorder   *recording.Controller
	triggerEng *triggers.Engine
	dist       *distributor.Distributor
	sched      *maintenance.Scheduler
	cpuMon     *auxiliary.CPUMonitor
	cfgFeed    *auxiliary.ConfigFeed
	listener   *udpserver.Listener
	host       *host

	tree *supervisor.SupervisorTree

	sessionID int64
	log       *logging.PSSLogger
}

// New builds every core component from cfg and wires them together: it
// opens the event store and connects the enabled scene-controller
// endpoints, but starts no service; call Run to create the session and
// serve the supervisor tree until ctx is canceled.
func New(cfg *config.Config) (*Orchestrator, error) {
	cfgManager, err := config.NewManager(cfg)
	if err != nil {
		return nil, fmt.Errorf("config manager: %w", err)
	}

	st, err := store.Open(context.Background(), cfg.Store.DataDir, cfg.Store.Name, cfg.Store.PoolMaxSize)
	if err != nil {
		return nil, fmt.Errorf("open event store: %w", err)
	}

	endpoints := make([]sceneclient.Endpoint, 0, len(cfg.SceneCtrl.Endpoints))
	for _, e := range cfg.SceneCtrl.Endpoints {
		if !e.Enabled {
			continue
		}
		endpoints = append(endpoints, sceneclient.Endpoint{
			Name: e.Name, Host: e.Host, Port: e.Port, Password: e.Password,
		})
	}
	scenes, err := sceneclient.NewManager(context.Background(), endpoints)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("connect scene controllers: %w", err)
	}

	dist := distributor.New(newUIBridge())
	h := newHost(dist)

	recorder := recording.New(
		recording.PathConfig{
			VideosRoot:      cfg.Recording.RootPath,
			DirectoryFormat: cfg.Recording.FolderPattern,
			FilenameFormat:  cfg.Recording.FilenameTemplate,
		},
		recording.AutoConfig{
			Enabled:                        cfg.AutoRecording.Enabled,
			AutoStopOnWinner:               cfg.AutoRecording.AutoStopOnWinner,
			StopDelaySeconds:               cfg.AutoRecording.StopDelaySeconds,
			AutoStartRecordingOnMatchBegin: cfg.AutoRecording.AutoStartRecordingOnMatchBegin,
			AutoStartReplayOnMatchBegin:    cfg.AutoRecording.AutoStartReplayOnMatchBegin,
		},
		recording.ReplayConfig{
			AutoOnChallenge: cfg.IVR.Replay.AutoOnChallenge,
			MpvPath:         cfg.IVR.Replay.MpvPath,
			SecondsFromEnd:  cfg.IVR.Replay.SecondsFromEnd,
			MaxWaitMs:       cfg.IVR.Replay.MaxWaitMs,
		},
		func() recording.SceneController {
			if c := scenes.Recording(); c != nil {
				return c
			}
			return nil
		},
		st,
		st,
		h,
	)
	if cfg.IVR.Replay.MpvPath != "" {
		recorder.WithPlayerLauncher(recording.LaunchExternalPlayer(cfg.IVR.Replay.MpvPath))
	}

	triggerEng := triggers.New(cfg.Triggers.Rules, scenes.Recording(), &overlayEmitter{host: h}, logging.NewPSSLogger("triggers"))
	triggerEng.SetResumeDelay(time.Duration(cfg.Triggers.ResumeDelayMs) * time.Millisecond)

	sched := maintenance.New(st, maintenance.Config{
		VacuumInterval:          time.Duration(cfg.Maintenance.VacuumIntervalS) * time.Second,
		IntegrityCheckInterval:  time.Duration(cfg.Maintenance.IntegrityCheckIntervalS) * time.Second,
		AnalyzeInterval:         time.Duration(cfg.Maintenance.AnalyzeIntervalS) * time.Second,
		OptimizeInterval:        time.Duration(cfg.Maintenance.OptimizeIntervalS) * time.Second,
		BackupBeforeMaintenance: cfg.Maintenance.BackupBeforeMaintenance,
		RetentionWindow:         cfg.Maintenance.RetentionWindow,
	})

	cpuMon := auxiliary.NewCPUMonitor(h, 5*time.Second)
	cfgFeed := auxiliary.NewConfigFeed(cfgManager, h)

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		scenes.Close()
		st.Close()
		return nil, fmt.Errorf("supervisor tree: %w", err)
	}

	return &Orchestrator{
		cfgManager: cfgManager,
		store:      st,
		scenes:     scenes,
		recorder:   recorder,
		triggerEng: triggerEng,
		dist:       dist,
		sched:      sched,
		cpuMon:     cpuMon,
		cfgFeed:    cfgFeed,
		host:       h,
		tree:       tree,
		log:        logging.NewPSSLogger("orchestrator"),
	}, nil
}

// Run creates the session row, builds the UDP sinks, registers every
// component with the supervisor tree, and serves until ctx is canceled.
// On return the session row has been ended and every component stopped.
func (o *Orchestrator) Run(ctx context.Context) error {
	cfg := o.cfgManager.Get()

	sessionID, err := o.store.CreateSession(ctx, "default")
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	o.sessionID = sessionID

	match := &currentMatch{}
	q, err := openDurableQueue(cfg.Store.DataDir)
	if err != nil {
		return fmt.Errorf("open durable queue: %w", err)
	}
	defer q.Close()
	o.recoverPendingQueue(ctx, q)

	pSink := newPersistenceSink(q, o.store, o.recorder, sessionID, match)
	tSink := newTriggerSink(o.triggerEng)
	dSink := newDistributorSink(o.host, sessionID, match)
	o.listener = udpserver.New(pSink, tSink, dSink)

	o.tree.AddDistributionService(services.NewStartStopService("overlay-socket",
		startStopFunc(func(ctx context.Context) error {
			return o.dist.Start(ctx, cfg.Distributor.OverlayPort, streamProcessorWorkers)
		}, o.dist.Stop)))

	o.tree.AddDistributionService(services.NewFuncService("maintenance", func(ctx context.Context) error {
		o.sched.Start(ctx)
		<-ctx.Done()
		o.sched.Stop()
		return ctx.Err()
	}))

	o.tree.AddPipelineService(services.NewFuncService("trigger-housekeeping", func(ctx context.Context) error {
		<-ctx.Done()
		tSink.stop()
		return ctx.Err()
	}))

	for role, client := range o.scenes.Clients() {
		client := client
		name := fmt.Sprintf("scene-events-%s", role)
		o.tree.AddPipelineService(services.NewFuncService(name, func(ctx context.Context) error {
			o.forwardSceneEvents(ctx, client)
			return ctx.Err()
		}))
	}

	o.tree.AddPipelineService(services.NewFuncService("auxiliary", func(ctx context.Context) error {
		o.cpuMon.Start(ctx)
		o.cfgFeed.Start(ctx)
		<-ctx.Done()
		o.cfgFeed.Stop()
		o.cpuMon.Stop()
		return ctx.Err()
	}))

	if cfg.UDP.AutoStart {
		bind := cfg.UDP.BindAddress
		if cfg.UDP.NetworkInterface.AutoDetect {
			if addr, err := udpserver.BestInterfaceAddress(cfg.UDP.NetworkInterface.PreferredType, cfg.UDP.FallbackToLocalhost); err == nil {
				bind = addr
			}
		}
		port := cfg.UDP.Port
		o.tree.AddIngestService(services.NewStartStopService("udp-listener", startStopFunc(
			func(ctx context.Context) error { return o.listener.Start(ctx, bind, port) },
			o.listener.Stop,
		)))
	}

	errCh := o.tree.ServeBackground(ctx)
	runErr := <-errCh

	pSink.stop()
	if endErr := o.store.EndSession(context.Background(), sessionID); endErr != nil {
		o.log.LogPersistFailure(context.Background(), fmt.Errorf("end session: %w", endErr))
	}
	return runErr
}

// UnstoppedServiceReport returns any services that failed to stop within the
// supervisor tree's shutdown timeout, for logging after Run returns.
func (o *Orchestrator) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return o.tree.UnstoppedServiceReport()
}

// Close releases every resource opened by New, for use when Run never ran
// (e.g. construction succeeded but the caller aborted before serving).
func (o *Orchestrator) Close() error {
	if err := o.scenes.Close(); err != nil {
		return err
	}
	return o.store.Close()
}

// recoverPendingQueue re-parses and re-inserts every durable queue entry
// the store never confirmed before the previous process exited, then
// confirms it. An entry that fails to re-parse is stored as an invalid
// event and confirmed; an entry whose insert fails stays pending for the
// next restart.
func (o *Orchestrator) recoverPendingQueue(ctx context.Context, q *queue.Queue) {
	pending, err := q.GetPending(ctx)
	if err != nil {
		o.log.LogPersistFailure(ctx, fmt.Errorf("recover pending queue: %w", err))
		return
	}
	metrics.QueueRecoveredPending.Set(float64(len(pending)))
	for _, entry := range pending {
		payload, perr := pssparser.Parse(entry.Raw)
		var parseErrMsg *string
		if perr != nil {
			msg := perr.Error()
			parseErrMsg = &msg
		}
		if _, err := o.store.InsertEvent(ctx, o.sessionID, "", payload, entry.Raw, perr == nil, parseErrMsg); err != nil {
			o.log.LogPersistFailure(ctx, fmt.Errorf("recover queue entry %s: %w", entry.ID, err))
			continue
		}
		if err := q.Confirm(ctx, entry.ID); err != nil {
			o.log.LogPersistFailure(ctx, fmt.Errorf("confirm recovered entry %s: %w", entry.ID, err))
		}
	}
}

func (o *Orchestrator) forwardSceneEvents(ctx context.Context, c *sceneclient.Client) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-c.Events():
			if !ok {
				return
			}
			o.host.EmitCustomEvent("scene_status", sceneStatusEvent{
				Connection: c.Name(),
				Kind:       ev.Kind,
				Active:     ev.Active,
			})
		}
	}
}

// sceneStatusEvent is the payload of the "scene_status" custom event, one
// of the component-specific status events listed in §6.
type sceneStatusEvent struct {
	Connection string `json:"connection"`
	Kind       string `json:"kind"`
	Active     bool   `json:"active"`
}

// startStopAdapter satisfies services.StartStopper from separate start/stop
// closures, for components whose Start signature doesn't match (ctx) error
// exactly (the UDP listener takes a bind address and port; the distributor
// takes a port and worker count).
type startStopAdapter struct {
	start func(ctx context.Context) error
	stop  func()
}

func startStopFunc(start func(ctx context.Context) error, stop func()) services.StartStopper {
	return &startStopAdapter{start: start, stop: stop}
}

func (a *startStopAdapter) Start(ctx context.Context) error { return a.start(ctx) }
func (a *startStopAdapter) Stop()                           { a.stop() }
