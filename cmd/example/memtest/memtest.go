package main

import (
	"log"
	"net/http"
	_ "net/http/pprof" //nolint: gosec

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stumble/v8ssr/pkg/ssr"
)

const source = `
const items = Array.from({ length: 100 }, (_, i) => "<li>" + i + "</li>");
export default (p) => "<ul data-p='" + p + "'>" + items.join("") + "</ul>";
`

func renderOnce(engine *ssr.Engine) {
	params := `{"a":123,"b":456}`
	html, err := engine.RenderToString(source, &params)
	if err != nil {
		panic(err)
	}
	if len(html) == 0 {
		panic("empty render")
	}
}

func main() {
	metrics := ssr.NewMetrics(prometheus.DefaultRegisterer)
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		// http://localhost:6060/debug/pprof/
		// http://localhost:6060/metrics
		log.Println(http.ListenAndServe("localhost:6060", nil)) //nolint: gosec
	}()

	if err := ssr.Init(ssr.MaxHeapSizeOption{HeapSizeMB: 64}); err != nil {
		panic(err)
	}
	engine := ssr.New(ssr.WithMetrics(metrics))
	defer engine.Close()
	for i := 1; ; i++ {
		renderOnce(engine)
		// values created by renders live as long as the context
		if i%1000 == 0 {
			if err := engine.Reset(); err != nil {
				panic(err)
			}
		}
	}
}
