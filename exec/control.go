package exec

// Control API (spec §6.1): thin executionId-keyed wrappers over Execution's
// own methods, the shape a transport layer (out of scope, §1) would expose.

// Start begins execution executionID's dispatcher.
func (eng *Engine) Start(executionID string) error {
	e, err := eng.GetExecution(executionID)
	if err != nil {
		return err
	}
	return e.Start()
}

// Pause requests executionID pause; only legal when running.
func (eng *Engine) Pause(executionID string) error {
	e, err := eng.GetExecution(executionID)
	if err != nil {
		return err
	}
	return e.Pause()
}

// Resume requests executionID resume; only legal when paused.
func (eng *Engine) Resume(executionID string) error {
	e, err := eng.GetExecution(executionID)
	if err != nil {
		return err
	}
	return e.Resume()
}

// Stop cancels executionID; legal from any non-terminal status.
func (eng *Engine) Stop(executionID string) error {
	e, err := eng.GetExecution(executionID)
	if err != nil {
		return err
	}
	return e.Stop()
}

// Step releases one parked node on executionID; only legal when paused.
func (eng *Engine) Step(executionID string) error {
	e, err := eng.GetExecution(executionID)
	if err != nil {
		return err
	}
	return e.Step()
}

// AddBreakpoint adds nodeID to executionID's breakpoint set.
func (eng *Engine) AddBreakpoint(executionID, nodeID string) error {
	e, err := eng.GetExecution(executionID)
	if err != nil {
		return err
	}
	e.AddBreakpoint(nodeID)
	return nil
}

// RemoveBreakpoint removes nodeID from executionID's breakpoint set.
func (eng *Engine) RemoveBreakpoint(executionID, nodeID string) error {
	e, err := eng.GetExecution(executionID)
	if err != nil {
		return err
	}
	e.RemoveBreakpoint(nodeID)
	return nil
}

// GetState returns executionID's current status/timings/error.
func (eng *Engine) GetState(executionID string) (State, error) {
	e, err := eng.GetExecution(executionID)
	if err != nil {
		return State{}, err
	}
	return e.GetState(), nil
}

// GetBreakpoints returns executionID's current breakpoint node ids.
func (eng *Engine) GetBreakpoints(executionID string) ([]string, error) {
	e, err := eng.GetExecution(executionID)
	if err != nil {
		return nil, err
	}
	return e.GetBreakpoints(), nil
}
