package observability

const (
	AttrAgentName     = "agent.name"
	AttrAgentStatus   = "agent.status"
	AttrConfidence    = "agent.confidence"
	AttrWorkflowName  = "workflow.name"
	AttrWorkflowRunID = "workflow.run_id"
	AttrStepName      = "workflow.step"
	AttrLLMProvider   = "llm.provider"
	AttrLLMModel      = "llm.model"
	AttrQuery         = "retrieval.query"
	AttrTopK          = "retrieval.top_k"
	AttrMinScore      = "retrieval.min_score"
	AttrPassages      = "retrieval.passages"
	AttrErrorCode     = "error.code"
	AttrHTTPMethod    = "http.method"
	AttrHTTPRoute     = "http.route"
	AttrHTTPStatus    = "http.status_code"

	SpanWorkflowRun     = "workflow.run"
	SpanWorkflowStep    = "workflow.step"
	SpanAgentExecute    = "agent.execute"
	SpanLLMRequest      = "llm.request"
	SpanRetrievalSearch = "retrieval.search"
	SpanHTTPRequest     = "http.request"

	instrumentationName = "github.com/wongivan852/legal-ai-vault-sub000"
)
