package procrunner

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/stumble/v8ssr/pkg/ssr"
	"github.com/stumble/v8ssr/pkg/types"
)

// DefaultBinary is the render server started when Config.Binary is empty.
// go install github.com/stumble/v8ssr/cmd/ssrrunner
const DefaultBinary = "ssrrunner"

var (
	ErrorTimeout = fmt.Errorf("timeout")
	ErrorClosed  = fmt.Errorf("closed")
	ErrorKilled  = fmt.Errorf("killed")
)

type Config struct {
	// Binary is the ssrrunner executable, looked up in PATH.
	Binary        string
	MaxHeapSizeMB uint
	// RecycleAfter resets the render context every N requests.
	RecycleAfter int
	// OnExit is called once the process has exited and been reaped.
	OnExit func()
}

func (c Config) args() []string {
	args := []string{"--max-heap", strconv.FormatUint(uint64(c.MaxHeapSizeMB), 10)}
	if c.RecycleAfter > 0 {
		args = append(args, "--recycle-after", strconv.Itoa(c.RecycleAfter))
	}
	return args
}

// ProcRenderer renders in a separate ssrrunner process.
// It can safely enforce the global memory limit and per-request timeout,
// which an in-process engine cannot: a guest script stuck in a loop only
// costs the child process.
// ProcRenderer is not supposed to be used concurrently, although it is safe to do so.
// ProcRenderer must be closed after use.
type ProcRenderer struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  io.ReadCloser
	stderr  io.ReadCloser
	encoder *gob.Encoder
	decoder *gob.Decoder

	mu  sync.Mutex
	seq uint64

	wg      sync.WaitGroup
	closeFn func()
	closed  atomic.Bool
}

// NewProcRenderer starts a render server process.
func NewProcRenderer(cfg Config) (*ProcRenderer, error) {
	binary := cfg.Binary
	if binary == "" {
		binary = DefaultBinary
	}
	// Should be safe to pass these parameters because they are not user input.
	cmd := exec.Command(binary, cfg.args()...) //nolint:gosec

	// Set up the stdin, stdout, stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	// Start the process
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	proc := &ProcRenderer{
		cmd:     cmd,
		stdin:   stdin,
		stdout:  stdout,
		stderr:  stderr,
		encoder: types.NewRenderRequestEncoder(stdin),
		decoder: types.NewRenderResponseDecoder(stdout),
		closeFn: sync.OnceFunc(func() {
			err := cmd.Process.Kill()
			if err != nil {
				log.Debug().Err(err).Msgf("ssrrunner kill failed")
			}
		}),
	}

	// handle stderr; must finish before Wait closes the pipe
	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			log.Debug().Int("pid", cmd.Process.Pid).Msgf("ssrrunner stderr: %s", scanner.Text())
		}
	}()

	proc.wg.Add(1)
	// uses Wait() to handle SIGCHLD to avoid zombie process.
	go func() {
		defer proc.wg.Done()
		<-stderrDone
		_ = cmd.Wait()
		proc.closed.Store(true)
		if cfg.OnExit != nil {
			cfg.OnExit()
		}
	}()
	return proc, nil
}

func (r *ProcRenderer) IsClosed() bool {
	return r.closed.Load()
}

func (r *ProcRenderer) Close() {
	r.closeFn()
	r.wg.Wait()
}

// RenderToString renders source as an ES module in the child process.
// There are multiple possible outcomes:
//  1. The process is killed by the renderer because of timeout.
//     In this case, RenderToString will return ErrorTimeout, and the renderer will be closed.
//  2. The process is killed because of memory limit.
//     In this case, RenderToString will return ErrorKilled, but the renderer will not be closed.
//     Subsequent calls will return other errors like broken pipe.
//  3. Successful execution.
//     a. If the render succeeds, RenderToString returns the HTML.
//     b. If the render fails, RenderToString returns an *ssr.RenderError of the same kind.
func (r *ProcRenderer) RenderToString(ctx context.Context, source string, params *string) (string, error) {
	return r.render(ctx, types.RenderRequest{Source: source, Params: params})
}

// RenderEntryPoint is RenderToString for script bundles exposing a global
// object of render functions.
func (r *ProcRenderer) RenderEntryPoint(ctx context.Context, source, entryPoint string, params *string) (string, error) {
	return r.render(ctx, types.RenderRequest{Source: source, EntryPoint: entryPoint, Params: params})
}

func (r *ProcRenderer) render(ctx context.Context, req types.RenderRequest) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// don't run if closed
	if r.IsClosed() {
		return "", ErrorClosed
	}

	r.seq++
	req.ID = strconv.FormatUint(r.seq, 10)

	vals := make(chan string, 1)
	errs := make(chan error, 1)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()

		err := r.encoder.Encode(req)
		if err != nil {
			errs <- err
			return
		}

		var res types.RenderResponse
		err = r.decoder.Decode(&res)
		if err != nil {
			// error is EOF when the process is killed
			if err == io.EOF {
				errs <- ErrorKilled
				return
			}
			errs <- err
			return
		}
		if res.ID != req.ID {
			// should be impossible to reach here
			errs <- fmt.Errorf("unexpected id: %s", res.ID)
			return
		}
		if res.Error != nil || res.ErrorKind != "" {
			errs <- responseError(res)
			return
		}
		// gob drops empty strings, so a nil result is an empty render
		if res.Result == nil {
			vals <- ""
			return
		}
		vals <- *res.Result
	}()

	select {
	case val := <-vals:
		return val, nil
	case err := <-errs:
		return "", err
	case <-ctx.Done():
		r.Close()
		// prevent goroutine leak
		// Close() would have killed the process and should
		// send an EOF to the decoder.
		wg.Wait()
		return "", ErrorTimeout
	}
}

func responseError(res types.RenderResponse) error {
	msg := ""
	if res.Error != nil {
		msg = *res.Error
	}
	if res.ErrorKind != "" {
		return ssr.NewError(ssr.ErrorKind(res.ErrorKind), msg)
	}
	return fmt.Errorf("%s", msg)
}
