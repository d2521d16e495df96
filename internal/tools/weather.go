// Package tools implements the fixed toolset exposed to the generation
// engine: weather lookup and the document mutation tools.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/loomlabs/chatloom/internal/ai"
	"github.com/loomlabs/chatloom/internal/stream"
)

type Weather struct {
	Client  *http.Client
	BaseURL string
}

func NewWeather() *Weather {
	return &Weather{
		Client:  &http.Client{Timeout: 10 * time.Second},
		BaseURL: "https://api.open-meteo.com/v1/forecast",
	}
}

func (w *Weather) Def() ai.ToolDef {
	return ai.ToolDef{
		Name:        "getWeather",
		Description: "Get the current weather at a location",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"latitude":  map[string]any{"type": "number"},
				"longitude": map[string]any{"type": "number"},
			},
			"required": []string{"latitude", "longitude"},
		},
	}
}

func (w *Weather) Execute(ctx context.Context, input json.RawMessage, _ stream.Writer) (any, error) {
	var args struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return nil, fmt.Errorf("getWeather: bad arguments: %w", err)
	}

	url := fmt.Sprintf("%s?latitude=%f&longitude=%f&current=temperature_2m&hourly=temperature_2m&daily=sunrise,sunset&timezone=auto",
		w.BaseURL, args.Latitude, args.Longitude)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := w.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("getWeather: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("getWeather: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256*1024))
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("getWeather: bad response: %w", err)
	}
	return out, nil
}
