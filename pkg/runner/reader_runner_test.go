package runner

import (
	"bytes"
	"encoding/gob"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"github.com/stumble/v8ssr/pkg/ssr"
	"github.com/stumble/v8ssr/pkg/types"
)

type ReaderRunnerTestSuite struct {
	suite.Suite
}

func TestReaderRunnerTestSuite(t *testing.T) {
	suite.Run(t, new(ReaderRunnerTestSuite))
}

func (suite *ReaderRunnerTestSuite) SetupTest() {
}

func (suite *ReaderRunnerTestSuite) process(runner *ReaderRunner, reqs ...types.RenderRequest) []types.RenderResponse {
	buf := &bytes.Buffer{}
	writeToBuf := gob.NewEncoder(buf)
	for _, req := range reqs {
		suite.Require().NoError(writeToBuf.Encode(req))
	}
	result := &strings.Builder{}
	runner.Input = buf
	runner.Output = result
	suite.Require().NoError(runner.Process())

	readFromBuf := gob.NewDecoder(strings.NewReader(result.String()))
	responses := make([]types.RenderResponse, 0, len(reqs))
	for range reqs {
		res := types.RenderResponse{}
		suite.Require().NoError(readFromBuf.Decode(&res))
		responses = append(responses, res)
	}
	return responses
}

func (suite *ReaderRunnerTestSuite) TestOneRequest() {
	for _, tc := range []struct {
		name string
		req  types.RenderRequest
		res  types.RenderResponse
	}{
		{
			name: "simpleHTML",
			req: types.RenderRequest{
				ID:     "x",
				Source: `export default () => "<html></html>";`,
			},
			res: types.RenderResponse{
				ID:     "x",
				Result: ptr("<html></html>"),
			},
		},
		{
			name: "params",
			req: types.RenderRequest{
				ID:     "p",
				Source: `export default (p) => "<h1>" + JSON.parse(p).title + "</h1>";`,
				Params: ptr(`{"title":"hello"}`),
			},
			res: types.RenderResponse{
				ID:     "p",
				Result: ptr("<h1>hello</h1>"),
			},
		},
		{
			name: "entryPoint",
			req: types.RenderRequest{
				ID:         "s",
				Source:     `var SSR = {head: () => "<head></head>", body: () => "<body></body>"};`,
				EntryPoint: "SSR",
			},
			res: types.RenderResponse{
				ID:     "s",
				Result: ptr("<head></head><body></body>"),
			},
		},
		{
			name: "invocationError",
			req: types.RenderRequest{
				ID:     "e",
				Source: `export default () => { throw new Error("fail"); };`,
			},
			res: types.RenderResponse{
				ID:        "e",
				Error:     ptr("fail"),
				ErrorKind: string(ssr.KindInvocation),
			},
		},
		{
			name: "missingExport",
			req: types.RenderRequest{
				ID:     "m",
				Source: `export const x = 1;`,
			},
			res: types.RenderResponse{
				ID:        "m",
				Error:     ptr("module has no callable default export"),
				ErrorKind: string(ssr.KindMissingExport),
			},
		},
	} {
		suite.Run(tc.name, func() {
			runner, err := NewReaderRunner(nil, nil, 16)
			suite.NoError(err)
			suite.NotNil(runner)
			responses := suite.process(runner, tc.req)
			suite.Equal(tc.res, responses[0])
		})
	}
}

func (suite *ReaderRunnerTestSuite) TestCompileErrorKind() {
	runner, err := NewReaderRunner(nil, nil, 16)
	suite.Require().NoError(err)
	responses := suite.process(runner, types.RenderRequest{ID: "c", Source: `export default () => {`})
	suite.Nil(responses[0].Result)
	suite.Require().NotNil(responses[0].Error)
	suite.Equal(string(ssr.KindCompile), responses[0].ErrorKind)
	suite.Contains(*responses[0].Error, "bundle.mjs")
}

func (suite *ReaderRunnerTestSuite) Test2Requests() {
	source := `globalThis.hits = (globalThis.hits || 0) + 1; export default () => String(globalThis.hits);`
	runner, err := NewReaderRunner(nil, nil, 16)
	suite.Require().NoError(err)
	responses := suite.process(runner,
		types.RenderRequest{ID: "x", Source: source},
		types.RenderRequest{ID: "y", Source: source},
	)
	suite.Equal(types.RenderResponse{ID: "x", Result: ptr("1")}, responses[0])
	suite.Equal(types.RenderResponse{ID: "y", Result: ptr("2")}, responses[1])
}

func (suite *ReaderRunnerTestSuite) TestRecycleAfter() {
	source := `globalThis.hits = (globalThis.hits || 0) + 1; export default () => String(globalThis.hits);`
	runner, err := NewReaderRunner(nil, nil, 16)
	suite.Require().NoError(err)
	runner.RecycleAfter = 2
	reg := prometheus.NewRegistry()
	runner.Metrics = ssr.NewMetrics(reg)

	var reqs []types.RenderRequest
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		reqs = append(reqs, types.RenderRequest{ID: id, Source: source})
	}
	responses := suite.process(runner, reqs...)
	var got []string
	for _, res := range responses {
		suite.Require().NotNil(res.Result)
		got = append(got, *res.Result)
	}
	suite.Equal([]string{"1", "2", "1", "2", "1"}, got)
	suite.Equal(5.0, testutil.ToFloat64(runner.Metrics.RendersTotal.WithLabelValues("module", "ok")))
}

func (suite *ReaderRunnerTestSuite) TestPipeline() {
	// Create a pipe mimic from sender to receiver's stdin
	stdin, stdinWriter := io.Pipe()
	// Create a pipe mimic from receiver's stdout to reader
	stdoutReader, stdout := io.Pipe()

	runner, err := NewReaderRunner(stdin, stdout, 16)
	suite.NoError(err)
	suite.NotNil(runner)

	var wg sync.WaitGroup

	// simulate the server (binary) process
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := runner.Process()
		suite.NoError(err)
	}()

	// simulate the client process
	wg.Add(1)
	go func() {
		defer wg.Done()

		encoder := types.NewRenderRequestEncoder(stdinWriter)
		decoder := types.NewRenderResponseDecoder(stdoutReader)
		for _, tc := range []struct {
			req types.RenderRequest
			res types.RenderResponse
		}{
			{
				req: types.RenderRequest{
					ID:     "x",
					Source: `globalThis.layout = (body) => "<main>" + body + "</main>"; export default () => "layout";`,
				},
				res: types.RenderResponse{
					ID:     "x",
					Result: ptr("layout"),
				},
			},
			{
				req: types.RenderRequest{
					ID:     "y",
					Source: `export default (p) => globalThis.layout(p);`,
					Params: ptr("hi"),
				},
				res: types.RenderResponse{
					ID:     "y",
					Result: ptr("<main>hi</main>"),
				},
			},
		} {
			err := encoder.Encode(tc.req)
			suite.NoError(err)
			res := types.RenderResponse{}
			err = decoder.Decode(&res)
			suite.NoError(err)
			suite.Equal(tc.res, res)
		}
		suite.NoError(stdinWriter.Close())
	}()

	wg.Wait()
}

func ptr[T any](s T) *T {
	return &s
}
