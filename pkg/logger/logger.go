// -----------------------------------------------------------------------------
// Logger Package
// -----------------------------------------------------------------------------
// Uygulama genelinde kullanılan yapılandırılmış (structured) logger'ı üretir.
//
// Tüm bileşenler zerolog.Logger değerini constructor üzerinden alır; global
// logger kullanılmaz. Development ortamında okunabilir console çıktısı,
// diğer ortamlarda JSON satırları üretilir.
// -----------------------------------------------------------------------------

package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Options, logger oluşturma ayarlarıdır.
type Options struct {
	Level   string    // debug, info, warn, error
	Pretty  bool      // Console writer kullan
	Writer  io.Writer // nil ise os.Stdout
	Service string    // Her satıra eklenen servis adı
}

// New, verilen ayarlarla yeni bir zerolog.Logger döndürür.
//
// Örnek:
//
//	log := logger.New(logger.Options{Level: "debug", Service: "orgtree"})
//	log.Info().Str("table", "departments").Msg("migration tamamlandı")
func New(opts Options) zerolog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	if opts.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}

	ctx := zerolog.New(w).Level(ParseLevel(opts.Level)).With().Timestamp()
	if opts.Service != "" {
		ctx = ctx.Str("service", opts.Service)
	}
	return ctx.Logger()
}

// ParseLevel, string seviyeyi zerolog seviyesine çevirir.
// Tanınmayan değerler için info döner.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
