package observability

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog/log"
)

func TestInitLoggerToWritesAppField(t *testing.T) {
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })

	var buf bytes.Buffer
	logger := InitLoggerTo(&buf, "uwsgictl-test", false, true)
	logger.Info().Str("backend", "app").Msg("uwsgi_request")

	out := buf.String()
	for _, want := range []string{"uwsgi_request", "app=uwsgictl-test", "backend=app"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output %q missing %q", out, want)
		}
	}
}
