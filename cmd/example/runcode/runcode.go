package main

import (
	"context"
	"fmt"

	"github.com/stumble/v8ssr/pkg/procrunner"
)

func main() {
	const maxHeapSizeMB = 16
	renderer, err := procrunner.NewProcRenderer(procrunner.Config{MaxHeapSizeMB: maxHeapSizeMB})
	if err != nil {
		panic(err)
	}
	defer renderer.Close()

	params := `{"title": "Hello", "items": ["a", "b"]}`
	res, err := renderer.RenderToString(
		context.Background(),
		`export default (p) => {
  const data = JSON.parse(p);
  return "<h1>" + data.title + "</h1><ul>" + data.items.map((i) => "<li>" + i + "</li>").join("") + "</ul>";
};`,
		&params,
	)
	if err != nil {
		panic(err)
	}
	fmt.Println(res)

	_, err = renderer.RenderToString(context.Background(), `export default () => { throw new Error("boom"); };`, nil)
	fmt.Println(err)
}
