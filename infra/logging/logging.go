package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/openmart/inventory/infra/loki"
)

// Setup configures the global zerolog logger. Logs always go to stdout; when
// lokiURL is set they are also pushed to Loki. The returned closer flushes the
// Loki buffer.
func Setup(service, lokiURL string) func() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var writer io.Writer = os.Stdout
	closer := func() {}
	if lokiWriter := loki.NewWriter(lokiURL, service); lokiWriter != nil {
		writer = zerolog.MultiLevelWriter(os.Stdout, lokiWriter)
		closer = func() { _ = lokiWriter.Close() }
	}

	zlog.Logger = zerolog.New(writer).With().Timestamp().Str("service", service).Logger()
	return closer
}
