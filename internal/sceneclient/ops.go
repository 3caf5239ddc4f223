// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

package sceneclient

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
)

// SceneList is the response of ListScenes.
type SceneList struct {
	Current string
	Names   []string
}

// Status aggregates boolean state reported by one endpoint.
type Status struct {
	Recording bool
	Streaming bool
	ReplayBuf bool
	CPUUsage  float64
}

// GetCurrentScene returns the name of the active scene.
func (c *Client) GetCurrentScene(ctx context.Context) (string, error) {
	raw, err := c.SendRequest(ctx, "GetCurrentProgramScene", nil)
	if err != nil {
		return "", err
	}
	var resp struct {
		Name string `json:"sceneName"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode GetCurrentProgramScene response: %w", err)
	}
	return resp.Name, nil
}

// SetCurrentScene switches the active scene by name.
func (c *Client) SetCurrentScene(ctx context.Context, name string) error {
	_, err := c.SendRequest(ctx, "SetCurrentProgramScene", map[string]string{"sceneName": name})
	return err
}

// ListScenes returns all configured scene names and the current one.
func (c *Client) ListScenes(ctx context.Context) (SceneList, error) {
	raw, err := c.SendRequest(ctx, "GetSceneList", nil)
	if err != nil {
		return SceneList{}, err
	}
	var resp struct {
		Current string   `json:"currentProgramSceneName"`
		Scenes  []string `json:"scenes"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return SceneList{}, fmt.Errorf("decode GetSceneList response: %w", err)
	}
	return SceneList{Current: resp.Current, Names: resp.Scenes}, nil
}

// StartRecording begins recording on the endpoint.
func (c *Client) StartRecording(ctx context.Context) error {
	_, err := c.SendRequest(ctx, "StartRecord", nil)
	return err
}

// StopRecording ends recording on the endpoint.
func (c *Client) StopRecording(ctx context.Context) error {
	_, err := c.SendRequest(ctx, "StopRecord", nil)
	return err
}

// RecordingStatus reports whether recording is currently active.
func (c *Client) RecordingStatus(ctx context.Context) (bool, error) {
	return c.boolStatus(ctx, "GetRecordStatus", "outputActive")
}

// StartStreaming begins streaming on the endpoint.
func (c *Client) StartStreaming(ctx context.Context) error {
	_, err := c.SendRequest(ctx, "StartStream", nil)
	return err
}

// StopStreaming ends streaming on the endpoint.
func (c *Client) StopStreaming(ctx context.Context) error {
	_, err := c.SendRequest(ctx, "StopStream", nil)
	return err
}

// StreamingStatus reports whether streaming is currently active.
func (c *Client) StreamingStatus(ctx context.Context) (bool, error) {
	return c.boolStatus(ctx, "GetStreamStatus", "outputActive")
}

// StartReplayBuffer begins buffering for replay capture.
func (c *Client) StartReplayBuffer(ctx context.Context) error {
	_, err := c.SendRequest(ctx, "StartReplayBuffer", nil)
	return err
}

// StopReplayBuffer ends replay buffering.
func (c *Client) StopReplayBuffer(ctx context.Context) error {
	_, err := c.SendRequest(ctx, "StopReplayBuffer", nil)
	return err
}

// SaveReplayBuffer flushes the current replay buffer to a file.
func (c *Client) SaveReplayBuffer(ctx context.Context) error {
	_, err := c.SendRequest(ctx, "SaveReplayBuffer", nil)
	return err
}

// ReplayBufferStatus reports whether the replay buffer is active.
func (c *Client) ReplayBufferStatus(ctx context.Context) (bool, error) {
	return c.boolStatus(ctx, "GetReplayBufferStatus", "outputActive")
}

// SetRecordingDirectory reprograms the endpoint's output directory.
func (c *Client) SetRecordingDirectory(ctx context.Context, dir string) error {
	_, err := c.SendRequest(ctx, "SetRecordDirectory", map[string]string{"recordDirectory": dir})
	return err
}

// SetFilenameTemplate reprograms the endpoint's filename formatting string.
func (c *Client) SetFilenameTemplate(ctx context.Context, template string) error {
	_, err := c.SendRequest(ctx, "SetFilenameFormatting", map[string]string{"filenameFormatting": template})
	return err
}

// LastReplayFilename returns the path of the most recently saved replay.
func (c *Client) LastReplayFilename(ctx context.Context) (string, error) {
	raw, err := c.SendRequest(ctx, "GetLastReplayBufferReplay", nil)
	if err != nil {
		return "", err
	}
	var resp struct {
		Path string `json:"savedReplayPath"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode GetLastReplayBufferReplay response: %w", err)
	}
	return resp.Path, nil
}

// ServerStats returns basic CPU utilization as reported by the endpoint.
func (c *Client) ServerStats(ctx context.Context) (float64, error) {
	raw, err := c.SendRequest(ctx, "GetStats", nil)
	if err != nil {
		return 0, err
	}
	var resp struct {
		CPUUsage float64 `json:"cpuUsage"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return 0, fmt.Errorf("decode GetStats response: %w", err)
	}
	return resp.CPUUsage, nil
}

func (c *Client) boolStatus(ctx context.Context, method, field string) (bool, error) {
	raw, err := c.SendRequest(ctx, method, nil)
	if err != nil {
		return false, err
	}
	resp := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return false, fmt.Errorf("decode %s response: %w", method, err)
	}
	var active bool
	if v, ok := resp[field]; ok {
		_ = json.Unmarshal(v, &active)
	}
	return active, nil
}

// Status aggregates recording, streaming, replay-buffer, and CPU state from
// this single endpoint.
func (c *Client) Status(ctx context.Context) (Status, error) {
	rec, err := c.RecordingStatus(ctx)
	if err != nil {
		return Status{}, err
	}
	str, err := c.StreamingStatus(ctx)
	if err != nil {
		return Status{}, err
	}
	replay, err := c.ReplayBufferStatus(ctx)
	if err != nil {
		return Status{}, err
	}
	cpu, err := c.ServerStats(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{Recording: rec, Streaming: str, ReplayBuf: replay, CPUUsage: cpu}, nil
}
