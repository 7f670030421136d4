package ssr

import (
	"fmt"
	"strings"
	"sync"

	"github.com/evanw/esbuild/pkg/api"
)

const (
	// bundleFile is the synthetic file name reported in compile diagnostics.
	bundleFile = "bundle.mjs"
	// exportHook is the parameter of the module factory that receives the
	// module namespace once the body has run to completion. It is never
	// looked up on globalThis.
	exportHook      = "__ssrExport"
	moduleNamespace = "ssr"
	moduleSpecifier = moduleNamespace + ":" + bundleFile
	recorderPlugin  = "ssr-module-requests"
)

// entrySource imports the guest module as a namespace object and hands it to
// the export hook after every top-level await of the module has settled.
const entrySource = `import * as namespace from "` + moduleSpecifier + `";
` + exportHook + `(namespace);
`

// linkedModule is an ES module lowered to a function body plus the module
// requests (import specifiers) found while parsing it. The body still holds
// import statements for those requests, so it only compiles when there are
// none.
type linkedModule struct {
	script   string
	requests []string
}

// requestRecorder loads the guest module behind the entry and collects every
// other specifier esbuild asks to resolve, marking it external so parsing
// succeeds and instantiation can decide.
type requestRecorder struct {
	source string

	mu       sync.Mutex
	seen     map[string]bool
	requests []string
}

func (r *requestRecorder) plugin() api.Plugin {
	return api.Plugin{
		Name: recorderPlugin,
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: ".*"},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					switch {
					case args.Kind == api.ResolveEntryPoint:
						return api.OnResolveResult{}, nil
					case args.Path == moduleSpecifier && args.Namespace != moduleNamespace:
						return api.OnResolveResult{Path: bundleFile, Namespace: moduleNamespace}, nil
					case args.Kind == api.ResolveJSDynamicImport:
						// dynamic imports are not part of the static graph
						return api.OnResolveResult{Path: args.Path, External: true}, nil
					}
					r.add(args.Path)
					return api.OnResolveResult{Path: args.Path, External: true}, nil
				})
			build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: moduleNamespace},
				func(api.OnLoadArgs) (api.OnLoadResult, error) {
					return api.OnLoadResult{Contents: &r.source, Loader: api.LoaderJS}, nil
				})
		},
	}
}

func (r *requestRecorder) add(specifier string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen == nil {
		r.seen = map[string]bool{}
	}
	if r.seen[specifier] {
		return
	}
	r.seen[specifier] = true
	r.requests = append(r.requests, specifier)
}

// linkModule parses source as an ES module and lowers it to the body of an
// async function taking exportHook. Top-level await is kept, so the body
// only completes once the module has finished evaluating.
func linkModule(source string) (*linkedModule, error) {
	rec := &requestRecorder{source: source}
	result := api.Build(api.BuildOptions{
		Stdin: &api.StdinOptions{
			Contents:   entrySource,
			Sourcefile: "ssr-entry.mjs",
			Loader:     api.LoaderJS,
		},
		Bundle:   true,
		Write:    false,
		Format:   api.FormatESModule,
		Platform: api.PlatformNeutral,
		Target:   api.ESNext,
		Supported: map[string]bool{
			// a classic script has no import.meta
			"import-meta": false,
		},
		Charset:  api.CharsetUTF8,
		LogLevel: api.LogLevelSilent,
		Plugins:  []api.Plugin{rec.plugin()},
	})
	if len(result.Errors) > 0 {
		return nil, NewError(KindCompile, formatMessages(result.Errors))
	}
	if len(result.OutputFiles) != 1 {
		return nil, newErrorf(KindCompile, "expected one output file, got %d", len(result.OutputFiles))
	}
	return &linkedModule{
		script:   string(result.OutputFiles[0].Contents),
		requests: rec.requests,
	}, nil
}

func formatMessages(msgs []api.Message) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Location == nil {
			parts = append(parts, m.Text)
			continue
		}
		parts = append(parts, fmt.Sprintf("%s:%d:%d: %s",
			m.Location.File, m.Location.Line, m.Location.Column, m.Text))
	}
	return strings.Join(parts, "; ")
}
