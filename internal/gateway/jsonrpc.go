package gateway

// JSON-RPC envelope helpers for the direct MCP path. The MCP framework
// produces its own envelopes; these cover the boundary cases the
// gateway must answer itself (parse failures and recovered panics).

const (
	codeParseError    = -32700
	codeInternalError = -32000
)

type rpcErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type rpcEnvelope struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      any           `json:"id"`
	Error   *rpcErrorBody `json:"error,omitempty"`
	Result  any           `json:"result,omitempty"`
}

func rpcError(id any, code int, msg string, data any) rpcEnvelope {
	return rpcEnvelope{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcErrorBody{Code: code, Message: msg, Data: data},
	}
}
