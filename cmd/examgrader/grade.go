package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pavelanni/examgrader/internal/llm"
	"github.com/pavelanni/examgrader/internal/model"
	"github.com/pavelanni/examgrader/internal/results"
	"github.com/pavelanni/examgrader/internal/scoring"
)

func gradeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grade",
		Short: "Score one submission against a test file without starting the server",
		RunE:  runGrade,
	}
	f := cmd.Flags()
	f.String("test", "", "Path to a test JSON file (single test with answer key)")
	f.String("submission", "", "Path to a submission JSON file")
	f.String("student", "offline", "Student ID recorded on the result")
	f.StringP("output", "o", "", "Output file (default stdout)")
	addLLMFlags(f)
	addLogFlags(f)
	_ = cmd.MarkFlagRequired("test")
	_ = cmd.MarkFlagRequired("submission")
	return cmd
}

func runGrade(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)

	test, err := readTestFile(v.GetString("test"))
	if err != nil {
		return err
	}
	var sub model.Submission
	if err := readJSONFile(v.GetString("submission"), &sub); err != nil {
		return err
	}
	if sub.TestID == "" {
		sub.TestID = test.ID
	}
	if err := results.ValidateSubmission(sub); err != nil {
		return err
	}
	if sub.TestID != test.ID {
		return fmt.Errorf("submission is for test %q, not %q", sub.TestID, test.ID)
	}

	client, err := llm.New(llmConfig(v))
	if err != nil {
		return fmt.Errorf("create LLM client: %w", err)
	}
	engine := scoring.New(client, client, scoring.WithConcurrency(v.GetInt("concurrency")))

	ev := engine.Evaluate(context.Background(), test, sub.Answers)
	res := results.NewResult(uuid.NewString(), test, v.GetString("student"), ev, time.Now())
	return writeJSONOutput(v.GetString("output"), res)
}

func readTestFile(path string) (model.Test, error) {
	var ti model.TestImport
	if err := readJSONFile(path, &ti); err != nil {
		return model.Test{}, err
	}
	t := ti.Test()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if err := results.ValidateTest(&t); err != nil {
		return model.Test{}, fmt.Errorf("test in %s: %w", path, err)
	}
	return t, nil
}

func readJSONFile(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// writeJSONOutput writes v as indented JSON to path, or to stdout when path
// is empty.
func writeJSONOutput(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	data = append(data, '\n')
	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(os.Stderr, "Wrote %s\n", path)
	return nil
}
