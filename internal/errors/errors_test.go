package errors

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

func TestStatusCodes(t *testing.T) {
	tests := []struct {
		err  *AppError
		want int
	}{
		{Parse("bad date"), http.StatusBadRequest},
		{EmptyResult("no rows"), http.StatusNotFound},
		{FileHandoffWrap(fmt.Errorf("disk full"), "write"), http.StatusInternalServerError},
		{RateLimit("slow down"), http.StatusTooManyRequests},
		{Forbidden("cross-site"), http.StatusForbidden},
		{Internal("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.err.Code), func(t *testing.T) {
			if tt.err.StatusCode != tt.want {
				t.Errorf("StatusCode = %d, want %d", tt.err.StatusCode, tt.want)
			}
		})
	}
}

func TestIs(t *testing.T) {
	parseErr := ParseWrap(fmt.Errorf("strconv"), "bad bottles_sold")
	wrapped := fmt.Errorf("line 4: %w", parseErr)

	if !Is(wrapped, CodeParse) {
		t.Error("Is() should find PARSE_ERROR through fmt wrapping")
	}
	if Is(wrapped, CodeEmptyResult) {
		t.Error("Is() matched the wrong code")
	}

	nested := InternalWrap(EmptyResult("nothing"), "outer")
	if !Is(nested, CodeEmptyResult) {
		t.Error("Is() should look at the AppError cause chain")
	}
	if Is(fmt.Errorf("plain"), CodeInternal) {
		t.Error("Is() should be false for non-AppError values")
	}
}

func TestWriteError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	w := httptest.NewRecorder()

	WriteError(w, logger, EmptyResult("no rows match the selected filters"), "req-1")

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}

	var resp struct {
		Error struct {
			Code      string `json:"code"`
			RequestID string `json:"request_id"`
		} `json:"error"`
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Success {
		t.Error("success should be false")
	}
	if resp.Error.Code != string(CodeEmptyResult) {
		t.Errorf("code = %q", resp.Error.Code)
	}
	if resp.Error.RequestID != "req-1" {
		t.Errorf("request_id = %q", resp.Error.RequestID)
	}
}

func TestWriteError_PlainError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	w := httptest.NewRecorder()

	WriteError(w, logger, fmt.Errorf("unexpected"), "")

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}
