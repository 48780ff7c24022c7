package task

// Planner turns a flat task list into a dependency-ordered ExecutionPlan,
// grouping independent tasks into parallel stages (C12).
type Planner struct {
	maxParallelism int
	allowParallel  bool
}

// NewPlanner builds a Planner with the teacher's defaults: parallelism 4,
// parallel execution allowed.
func NewPlanner() *Planner {
	return &Planner{maxParallelism: 4, allowParallel: true}
}

// WithMaxParallelism caps how many tasks may run in one stage (minimum 1).
func (p *Planner) WithMaxParallelism(max int) *Planner {
	if max < 1 {
		max = 1
	}
	p.maxParallelism = max
	return p
}

// SequentialOnly disables parallel stages: every stage gets exactly one
// task.
func (p *Planner) SequentialOnly() *Planner {
	p.allowParallel = false
	return p
}

// Plan builds a dependency-ordered ExecutionPlan from tasks, detecting
// cyclic or missing dependencies.
func (p *Planner) Plan(id, goal string, tasks []SubTask) (ExecutionPlan, error) {
	if len(tasks) == 0 {
		return ExecutionPlan{}, newErr(ErrParse, "task list is empty")
	}

	graph, err := p.buildDependencyGraph(tasks)
	if err != nil {
		return ExecutionPlan{}, err
	}

	sorted, err := p.topologicalSort(graph)
	if err != nil {
		return ExecutionPlan{}, err
	}

	var stages []ExecutionStage
	if p.allowParallel {
		stages, err = p.identifyParallelStages(sorted)
		if err != nil {
			return ExecutionPlan{}, err
		}
	} else {
		stages = p.sequentialStages(sorted)
	}

	return NewExecutionPlan(id, goal, stages), nil
}

func (p *Planner) buildDependencyGraph(tasks []SubTask) (*DependencyGraph, error) {
	graph := NewDependencyGraph()
	for _, t := range tasks {
		graph.AddNode(t)
	}
	for _, t := range tasks {
		for _, depID := range t.DependsOn {
			if _, ok := graph.Nodes[depID]; !ok {
				return nil, newErr(ErrParse, "task %s depends on nonexistent task %s", t.ID, depID)
			}
			graph.AddEdge(depID, t.ID)
		}
	}
	return graph, nil
}

// topologicalSort runs Kahn's algorithm, detecting cycles by comparing the
// sorted count against the node count.
func (p *Planner) topologicalSort(graph *DependencyGraph) ([]SubTask, error) {
	inDegree := make(map[string]int, len(graph.Nodes))
	for id, t := range graph.Nodes {
		inDegree[id] = len(t.DependsOn)
	}

	var queue []string
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}

	var sorted []SubTask
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		sorted = append(sorted, graph.Nodes[id])

		for _, dependent := range graph.Edges[id] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(sorted) != len(graph.Nodes) {
		return nil, &Error{Kind: ErrCyclicDependency}
	}
	return sorted, nil
}

// identifyParallelStages groups ready tasks (all dependencies completed)
// into stages, capping each at maxParallelism.
func (p *Planner) identifyParallelStages(sorted []SubTask) ([]ExecutionStage, error) {
	var stages []ExecutionStage
	stageNum := 0
	remaining := make(map[string]bool, len(sorted))
	for _, t := range sorted {
		remaining[t.ID] = true
	}
	completed := make(map[string]bool, len(sorted))

	for len(remaining) > 0 {
		var ready []SubTask
		for _, t := range sorted {
			if !remaining[t.ID] {
				continue
			}
			allDepsDone := true
			for _, dep := range t.DependsOn {
				if !completed[dep] {
					allDepsDone = false
					break
				}
			}
			if allDepsDone {
				ready = append(ready, t)
			}
		}

		if len(ready) == 0 {
			return nil, &Error{Kind: ErrUnresolvableDeps}
		}

		if len(ready) > p.maxParallelism {
			ready = ready[:p.maxParallelism]
		}

		mode := ModeSequential
		if len(ready) > 1 {
			mode = ModeParallel
		}
		stages = append(stages, NewExecutionStage(stageNum, ready, mode))

		for _, t := range ready {
			delete(remaining, t.ID)
			completed[t.ID] = true
		}
		stageNum++
	}

	return stages, nil
}

func (p *Planner) sequentialStages(sorted []SubTask) []ExecutionStage {
	stages := make([]ExecutionStage, len(sorted))
	for i, t := range sorted {
		stages[i] = NewExecutionStage(i, []SubTask{t}, ModeSequential)
	}
	return stages
}

// Analysis summarizes a plan's parallelism payoff.
type Analysis struct {
	TotalTasks     int
	TotalStages    int
	ParallelStages int
	ParallelTasks  int
	SequentialTime int
	ParallelTime   int
	TimeSaved      int
	EfficiencyGain float64
}

// AnalyzePlan compares the plan's parallel total time against running every
// task sequentially, reporting the time saved and efficiency gain.
func (p *Planner) AnalyzePlan(plan ExecutionPlan) Analysis {
	totalTasks := plan.TotalTasks()
	totalStages := len(plan.Stages)

	parallelTasks := 0
	sequentialTime := 0
	for _, s := range plan.Stages {
		if s.Mode == ModeParallel {
			parallelTasks += len(s.Tasks)
		}
		for _, t := range s.Tasks {
			sequentialTime += t.EstimatedTime
		}
	}

	parallelTime := plan.TotalEstimatedTime
	timeSaved := sequentialTime - parallelTime
	if timeSaved < 0 {
		timeSaved = 0
	}
	efficiency := 0.0
	if sequentialTime > 0 {
		efficiency = float64(timeSaved) / float64(sequentialTime) * 100
	}

	return Analysis{
		TotalTasks:     totalTasks,
		TotalStages:    totalStages,
		ParallelStages: plan.ParallelStages,
		ParallelTasks:  parallelTasks,
		SequentialTime: sequentialTime,
		ParallelTime:   parallelTime,
		TimeSaved:      timeSaved,
		EfficiencyGain: efficiency,
	}
}
