package fim

import "fmt"

// GetHistory returns the most recent baseline and check runs, newest first.
func (s *FIMService) GetHistory(limit int) ([]*Run, error) {
	runs, err := s.database.ListRuns(limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

// startRun records the beginning of an operation.
func (s *FIMService) startRun(operation, root string, algo Algorithm) (*Run, error) {
	run := &Run{
		RunID:     s.idgen.New(),
		Operation: operation,
		Root:      root,
		Algorithm: algo,
		StartedAt: s.clock.Now(),
		Status:    "running",
	}
	if err := s.database.CreateRun(run); err != nil {
		return nil, fmt.Errorf("recording run: %w", err)
	}
	return run, nil
}

// finishRun stores the outcome of run. Failures are logged, not returned,
// so they never mask the operation's own result.
func (s *FIMService) finishRun(run *Run, opErr error) {
	run.Status = "success"
	if opErr != nil {
		run.Status = "error"
	}
	run.FinishedAt.Time = s.clock.Now()
	run.FinishedAt.Valid = true

	if err := s.database.FinishRun(run); err != nil {
		s.logger.Error("failed to record run result", "run_id", run.RunID, "error", err)
	}
}
