package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
)

type TestSetup struct {
	CmpOptions []cmp.Option
}

type TestScenario struct {
	Name            string
	Command         []string
	Stdin           string
	SetupFileSystem func(fs *afero.Afero)
	SetupEnv        map[string]string
	Expected        TestExpectation
}

type TestExpectation struct {
	Stdout string
	Error  string
}

func (s *TestSetup) RunTests(t *testing.T, scenarios []TestScenario) {
	if len(scenarios) == 0 {
		t.Fatalf("no scenarios provided")
	}

	for _, scenario := range scenarios {
		t.Run(scenario.Name, func(t *testing.T) {
			_, actual := runScenario(t, scenario)
			if diff := cmp.Diff(scenario.Expected, actual, s.CmpOptions...); diff != "" {
				t.Errorf("%s() mismatch (-want +got):\n%s", scenario.Name, diff)
			}
		})
	}
}

// runScenario executes one CLI invocation against an in-memory filesystem and
// returns the raw stdout alongside the observed expectation fields.
func runScenario(t *testing.T, scenario TestScenario) (string, TestExpectation) {
	t.Helper()

	fs := &afero.Afero{Fs: afero.NewMemMapFs()}
	if scenario.SetupFileSystem != nil {
		scenario.SetupFileSystem(fs)
	}

	for key, value := range scenario.SetupEnv {
		t.Setenv(key, value)
	}

	testCmd := NewRootCmd()

	var stdin bytes.Buffer
	if scenario.Stdin != "" {
		stdin.WriteString(scenario.Stdin)
		testCmd.SetIn(&stdin)
	}

	var stdout bytes.Buffer
	testCmd.SetOut(&stdout)
	testCmd.SetErr(&stdout)

	ctx := context.Background()
	ctx = context.WithValue(ctx, ContextKeyFileSystem, fs)
	ctx = context.WithValue(ctx, ContextKeyDisableFileLogs, true)

	testCmd.SetArgs(scenario.Command)

	var actual TestExpectation
	if err := testCmd.ExecuteContext(ctx); err != nil {
		actual.Error = err.Error()
	}
	actual.Stdout = stdout.String()

	return stdout.String(), actual
}
