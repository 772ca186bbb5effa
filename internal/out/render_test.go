package out

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/ggonzalez94/swapper/internal/config"
	"github.com/ggonzalez94/swapper/internal/model"
)

func TestRenderJSONSelectResultsOnly(t *testing.T) {
	env := model.Envelope{
		Version: model.EnvelopeVersion,
		Success: true,
		Data:    []map[string]any{{"provider": "LIFI", "chain_id": 250}},
		Meta:    model.EnvelopeMeta{Timestamp: time.Now()},
	}
	settings := config.Settings{OutputMode: "json", SelectFields: []string{"provider"}, ResultsOnly: true}
	var buf bytes.Buffer
	if err := Render(&buf, env, settings); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	var out []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	if len(out) != 1 || out[0]["provider"] != "LIFI" {
		t.Fatalf("unexpected output: %s", buf.String())
	}
	if _, ok := out[0]["chain_id"]; ok {
		t.Fatalf("field projection failed: %s", buf.String())
	}
}

func TestRenderSelectDottedPath(t *testing.T) {
	env := model.Envelope{
		Success: true,
		Data: map[string]any{
			"call_data": "0x12",
			"request":   map[string]any{"chain_id": 250, "amount": "100000000"},
		},
	}
	settings := config.Settings{OutputMode: "json", SelectFields: []string{"request.chain_id", "call_data"}, ResultsOnly: true}
	var buf bytes.Buffer
	if err := Render(&buf, env, settings); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	if out["request.chain_id"] != float64(250) || out["call_data"] != "0x12" || len(out) != 2 {
		t.Fatalf("unexpected projection: %s", buf.String())
	}
}

func TestRenderPlainFlattensNested(t *testing.T) {
	env := model.Envelope{
		Success: true,
		Data:    map[string]any{"provider": "SOCKET", "request": map[string]any{"chain_id": 137}},
	}
	settings := config.Settings{OutputMode: "plain", ResultsOnly: true}
	var buf bytes.Buffer
	if err := Render(&buf, env, settings); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	got := strings.TrimSpace(buf.String())
	if got != "provider=SOCKET request.chain_id=137" {
		t.Fatalf("unexpected plain output: %q", got)
	}
}

func TestRenderPlainEnvelopeIncludesError(t *testing.T) {
	env := model.Envelope{
		Success: false,
		Error:   &model.ErrorBody{Code: 13, Type: "upstream_error", Message: "boom", UpstreamStatus: 502},
	}
	var buf bytes.Buffer
	if err := Render(&buf, env, config.Settings{OutputMode: "plain"}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(buf.String(), "error.upstream_status=502") || !strings.Contains(buf.String(), "success=false") {
		t.Fatalf("unexpected plain output: %s", buf.String())
	}
}
