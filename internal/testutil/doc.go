// Package testutil provides shared test utilities for stagehand.
//
// This package consolidates common test helpers, fixtures, and assertions
// used across the stagehand codebase to reduce duplication and ensure
// consistent test patterns.
//
// # Fixtures
//
// The fixtures.go file provides sample data for testing:
//
//   - SampleConfigYAML, SampleSceneYAML - file contents for config and scenes
//   - SampleProgram() - one block of every kind
//   - SampleRepeat() - repeat{3, [move 5]}
//   - FastTiming() - millisecond-scale suspensions for interpreter tests
//
// # Environment Helpers
//
// The env.go file provides test environment setup:
//
//   - SetupTestDir(t) - creates a temp directory holding a config and a scene
//   - MustMarshalJSON(t, v) - marshals to JSON or fails test
//   - MustUnmarshalJSON(t, data, v) - unmarshals JSON or fails test
//   - WriteTestFile(t, base, path, content) - writes a file in test dir
//
// # Assertions
//
// The assertions.go file provides custom test assertions:
//
//   - AssertPoint(t, expected, actual) - compares positions with a tolerance
//   - AssertBlockKinds(t, expected, blocks) - compares a block list by kind
//   - WaitFor(t, cond, msg) - polls until cond holds or fails the test
//
// # Usage
//
// Import the package in your test files:
//
//	import "github.com/thruflo/stagehand/internal/testutil"
//
// Then use the helpers:
//
//	func TestSomething(t *testing.T) {
//	    ctx, cancel := testutil.ShortOperationContext(t)
//	    defer cancel()
//	    // ... run test ...
//	    testutil.AssertPoint(t, geom.Point{X: 15}, got)
//	}
package testutil
