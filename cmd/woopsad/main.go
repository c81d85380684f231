// woopsad runs a standalone Woopsa server exposing a small demo
// catalog, wiring wopsnet.Host in front of the woopsa request engine.
package main

import (
	"flag"

	"github.com/woopsa-protocol/woopsa"
	"github.com/woopsa-protocol/woopsa/internal/wlog"
	"github.com/woopsa-protocol/woopsa/wcatalog"
	"github.com/woopsa-protocol/woopsa/wopsnet"
)

// demoProperty is a mutex-free storage cell; the catalog's own Locker
// serializes every Get/Set the request engine performs, so no
// additional synchronization belongs here.
type demoProperty struct {
	value any
}

func (p *demoProperty) Get() any { return p.value }
func (p *demoProperty) Set(v any) error {
	p.value = v
	return nil
}

func buildDemoCatalog() *wcatalog.Catalog {
	temperature := &demoProperty{value: float32(24.2)}
	altitude := &demoProperty{value: int32(430)}
	city := &demoProperty{value: "Geneva"}

	return wcatalog.New(wcatalog.NewMutex(),
		wcatalog.PropertyReadOnly("Temperature", wcatalog.TypeReal, temperature, 0),
		wcatalog.Property("Altitude", wcatalog.TypeInteger, altitude, 0),
		wcatalog.Property("City", wcatalog.TypeText, city, 64),
		wcatalog.Method("GetWeather", wcatalog.TypeText, func() (any, error) {
			return "Sunny, " + city.value.(string), nil
		}),
		wcatalog.MethodVoid("ResetTemperature", func() error {
			temperature.value = float32(20.0)
			return nil
		}),
	)
}

func main() {
	addr := flag.String("addr", ":8080", "address to listen on")
	prefix := flag.String("prefix", "/woopsa/", "path prefix the woopsa engine serves")
	rps := flag.Float64("rate-limit", 50, "max new connections per second per remote IP (0 disables)")
	burst := flag.Int("burst", 100, "burst size per remote IP")
	flag.Parse()

	logger := wlog.New(nil, wlog.InfoLevel)

	catalog := buildDemoCatalog()
	server := woopsa.New(*prefix, catalog, staticFallback, woopsa.WithLogger(logger))

	host := wopsnet.NewHost(server,
		wopsnet.WithRateLimit(*rps, *burst),
		wopsnet.WithLogger(logger),
	)

	if err := host.Listen(*addr); err != nil {
		logger.Fatal().Err(err).Msg("woopsa host exited")
	}
}

// staticFallback serves a single fixed landing page for any request
// outside the woopsa prefix, demonstrating the FallbackHandler hook
// without depending on a filesystem.
func staticFallback(path string, isPost bool, out []byte) int {
	if path != "/" || isPost {
		return 0
	}
	const page = `<!doctype html><html><body><h1>woopsa demo server</h1></body></html>`
	n := copy(out, page)
	return n
}
