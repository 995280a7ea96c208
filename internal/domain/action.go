package domain

import "context"

// ResultKind tags the three variants of Result, replacing the source's
// tagged tuples with a genuine Go sum type per the DESIGN NOTES.
type ResultKind int

const (
	ResultOk ResultKind = iota
	ResultErr
	ResultSuspend
)

// SuspensionType is the closed set of suspension tags an action may use.
type SuspensionType string

const (
	SuspendSubWorkflowSync       SuspensionType = "sub_workflow_sync"
	SuspendSubWorkflowAsync      SuspensionType = "sub_workflow_async"
	SuspendSubWorkflowFireForget SuspensionType = "sub_workflow_fire_forget"
	SuspendExternalEvent         SuspensionType = "external_event"
	SuspendDelay                 SuspensionType = "delay"
	SuspendPollUntil             SuspensionType = "poll_until"
)

// Result is the sum type an Action handler returns: exactly one of Ok, Err,
// or Suspend is populated, selected by Kind. Constructing via OkResult,
// ErrResult, or SuspendResult keeps callers from building an invalid mix.
type Result struct {
	Kind ResultKind

	// Ok
	Data any
	Port string // empty means "use the action's default_success_port"

	// Err. Code is the action's own free-form error tag (e.g. "boom"), not
	// one of the engine's closed ErrorKind values — the node executor wraps
	// every handler-level Err as ErrActionError and carries Code through as
	// the {code, message, details} payload's "code" (§7).
	ErrCode    string
	ErrMessage string
	ErrDetails map[string]any

	// Suspend
	SuspendType SuspensionType
	SuspendData any
}

func OkResult(data any, port string) Result {
	return Result{Kind: ResultOk, Data: data, Port: port}
}

func ErrResult(code string, message string, details map[string]any) Result {
	return Result{Kind: ResultErr, ErrCode: code, ErrMessage: message, ErrDetails: details}
}

func SuspendResult(typ SuspensionType, data any) Result {
	return Result{Kind: ResultSuspend, SuspendType: typ, SuspendData: data}
}

// Handler is the pure function behind an Action: it computes a Result from
// rendered params, routed input, and the execution's live variables. A
// context is threaded through for cancellation/deadline propagation even
// though the spec describes it as a pure function of three arguments.
type Handler func(ctx context.Context, params map[string]any, routedInput map[string]any, vars map[string]any) Result

// Action describes the executable behind a node Type: its declared ports
// and the handler that implements it (§3, §6).
type Action struct {
	Name                string
	InputPorts          []string
	OutputPorts         []string
	DefaultSuccessPort  string
	DefaultErrorPort    string
	Handler             Handler
	// Kind distinguishes trigger actions from regular actions for compiler
	// trigger discovery (§4.1 step 2). Non-trigger actions leave this empty.
	Kind string
}

const ActionKindTrigger = "trigger"

func (a *Action) IsTrigger() bool {
	return a.Kind == ActionKindTrigger
}

// HasOutputPort reports whether port is among the action's declared
// output_ports, used to fail fatally on an undeclared port (§4.3 step 4).
func (a *Action) HasOutputPort(port string) bool {
	for _, p := range a.OutputPorts {
		if p == port {
			return true
		}
	}
	return false
}

// Registry is the read-mostly lookup contract (§6): "Lookup(type) -> Action
// | NotFound". Registration and storage are out of scope; implementations
// must be safe for concurrent readers since one registry may back many
// concurrent Executions (§5).
type Registry interface {
	Lookup(actionType string) (*Action, bool)
}
