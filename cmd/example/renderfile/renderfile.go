package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/stumble/v8ssr/pkg/procrunner"
)

var (
	entryPoint = flag.String("entry", "", "global variable holding the render functions; empty for ES module bundles")
	timeout    = flag.Duration("timeout", 5*time.Second, "render timeout")
	maxHeap    = flag.Uint("max-heap", 16, "max heap size in MB")
)

// readFileToString reads the contents of the file specified by filename
// and returns it as a string.
func readFileToString(filename string) (string, error) {
	// #nosec G304 -- This is an example program that intentionally opens user-specified files
	file, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = file.Close()
	}()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return "", err
	}

	return string(bytes), nil
}

func main() {
	flag.Parse()
	if flag.NArg() < 1 {
		fmt.Println("Usage: go run renderfile.go [-entry SSR] <bundle.js> [params-json]")
		os.Exit(1)
	}
	filename := flag.Arg(0)
	var params *string
	if flag.NArg() > 1 {
		p := flag.Arg(1)
		params = &p
	}

	renderer, err := procrunner.NewProcRenderer(procrunner.Config{MaxHeapSizeMB: *maxHeap})
	if err != nil {
		panic(err)
	}
	defer renderer.Close()

	source, err := readFileToString(filename)
	if err != nil {
		panic(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	var html string
	if *entryPoint == "" {
		html, err = renderer.RenderToString(ctx, source, params)
	} else {
		html, err = renderer.RenderEntryPoint(ctx, source, *entryPoint, params)
	}
	if err != nil {
		panic(err)
	}
	fmt.Println(html)
}
