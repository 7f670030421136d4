package ssr

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type LinkerTestSuite struct {
	suite.Suite
}

func TestLinkerTestSuite(t *testing.T) {
	suite.Run(t, new(LinkerTestSuite))
}

func (suite *LinkerTestSuite) TestLowersToNamespaceScript() {
	linked, err := linkModule(`export default () => "<html></html>";`)
	suite.Require().NoError(err)
	suite.Empty(linked.requests)
	suite.Contains(linked.script, exportHook+"(")
	suite.Contains(linked.script, "<html></html>")
	suite.NotContains(linked.script, "export default")
}

func (suite *LinkerTestSuite) TestKeepsTopLevelAwait() {
	linked, err := linkModule(`const x = await Promise.resolve("tla"); export default () => x;`)
	suite.Require().NoError(err)
	suite.Empty(linked.requests)
	suite.Contains(linked.script, "await Promise.resolve")
}

func (suite *LinkerTestSuite) TestLowersImportMeta() {
	linked, err := linkModule(`export default () => typeof import.meta;`)
	suite.Require().NoError(err)
	suite.NotContains(linked.script, "import.meta")
}

func (suite *LinkerTestSuite) TestRecordsModuleRequests() {
	for _, tc := range []struct {
		name     string
		source   string
		requests []string
	}{
		{
			name:     "importDefault",
			source:   `import React from "react"; export default () => React;`,
			requests: []string{"react"},
		},
		{
			name:     "reExport",
			source:   `export * from "./components.js";`,
			requests: []string{"./components.js"},
		},
		{
			name:     "sideEffectImport",
			source:   `import "polyfill"; export default () => "";`,
			requests: []string{"polyfill"},
		},
		{
			name:     "require",
			source:   `const fs = require("fs"); module.exports = () => fs;`,
			requests: []string{"fs"},
		},
		{
			name:     "dynamicImportIsNotStatic",
			source:   `export default () => import("lazy");`,
			requests: nil,
		},
	} {
		suite.Run(tc.name, func() {
			linked, err := linkModule(tc.source)
			suite.Require().NoError(err)
			suite.ElementsMatch(tc.requests, linked.requests)
		})
	}
}

func (suite *LinkerTestSuite) TestSyntaxError() {
	_, err := linkModule(`export default () => {`)
	suite.ErrorIs(err, ErrorCompile)
	suite.Contains(err.Error(), bundleFile+":1:")

	_, err = linkModule(`export default 1; export default 2;`)
	suite.ErrorIs(err, ErrorCompile)
}
