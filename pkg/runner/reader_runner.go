package runner

import (
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/stumble/v8ssr/pkg/ssr"
	"github.com/stumble/v8ssr/pkg/types"
)

// ReaderRunner renders requests read from Input with one long-lived engine
// and writes the responses to Output.
type ReaderRunner struct {
	MaxHeapSizeMB uint
	// RecycleAfter resets the engine context every RecycleAfter requests.
	// Zero keeps one context for the whole stream.
	RecycleAfter int
	Metrics      *ssr.Metrics
	Input        io.Reader
	Output       io.Writer
}

// NewReaderRunner creates a new ReaderRunner that reads from input and writes to output.
func NewReaderRunner(input io.Reader, output io.Writer, maxHeapSizeMB uint) (*ReaderRunner, error) {
	return &ReaderRunner{
		MaxHeapSizeMB: maxHeapSizeMB,
		Input:         input,
		Output:        output,
	}, nil
}

// NewStdioRunner creates a new ReaderRunner that reads from stdin and writes to stdout.
func NewStdioRunner(maxHeapSizeMB uint) (*ReaderRunner, error) {
	return NewReaderRunner(os.Stdin, os.Stdout, maxHeapSizeMB)
}

func (r *ReaderRunner) Process() error {
	if err := ssr.Init(ssr.MaxHeapSizeOption{HeapSizeMB: r.MaxHeapSizeMB}); err != nil {
		return fmt.Errorf("failed to init platform: %w", err)
	}
	var options []ssr.EngineOption
	if r.Metrics != nil {
		options = append(options, ssr.WithMetrics(r.Metrics))
	}
	engine := ssr.New(options...)
	defer engine.Close()

	in := gob.NewDecoder(r.Input)
	out := gob.NewEncoder(r.Output)

	served := 0
	for {
		var req types.RenderRequest
		err := in.Decode(&req)
		if err != nil {
			// end of input
			if err == io.EOF {
				return nil
			}
			// unexpected input, return error
			return fmt.Errorf("failed to decode req: %w", err)
		}

		if r.RecycleAfter > 0 && served > 0 && served%r.RecycleAfter == 0 {
			if err := engine.Reset(); err != nil {
				return fmt.Errorf("failed to recycle engine: %w", err)
			}
		}
		served++

		var html string
		if req.EntryPoint == "" {
			html, err = engine.RenderToString(req.Source, req.Params)
		} else {
			html, err = engine.RenderEntryPoint(req.Source, req.EntryPoint, req.Params)
		}
		if err != nil {
			log.Debug().Err(err).Str("id", req.ID).Msg("render failed")
			if err = out.Encode(errResult(req.ID, err)); err != nil {
				return err
			}
			continue
		}
		if err = out.Encode(htmlResult(req.ID, html)); err != nil {
			return err
		}
	}
}
