package domain

import "fmt"

// TicketStatus represents the lifecycle state of a ticket.
type TicketStatus string

const (
	StatusFila              TicketStatus = "FILA"
	StatusEmAtendimento     TicketStatus = "EM_ATENDIMENTO"
	StatusAguardandoCliente TicketStatus = "AGUARDANDO_CLIENTE"
	StatusAguardandoInterno TicketStatus = "AGUARDANDO_INTERNO"
	StatusEnvioAtivo        TicketStatus = "ENVIO_ATIVO"
	StatusConcluido         TicketStatus = "CONCLUIDO"
	StatusEncerrado         TicketStatus = "ENCERRADO"
	StatusCancelado         TicketStatus = "CANCELADO"
)

// AllStatuses lists every ticket status. Tests iterate this to check the
// transition table is total.
var AllStatuses = []TicketStatus{
	StatusFila,
	StatusEmAtendimento,
	StatusAguardandoCliente,
	StatusAguardandoInterno,
	StatusEnvioAtivo,
	StatusConcluido,
	StatusEncerrado,
	StatusCancelado,
}

// IsValid reports whether s is a known ticket status.
func (s TicketStatus) IsValid() bool {
	_, ok := statusTransitions[s]
	return ok
}

// statusTransitions is the lifecycle decision table: for each status, the
// statuses a ticket may move to next. A self-transition is always allowed
// as a no-op and is intentionally not listed here. ENCERRADO and CANCELADO
// transition back to FILA so a closed conversation can be reopened.
var statusTransitions = map[TicketStatus][]TicketStatus{
	StatusFila:              {StatusEmAtendimento, StatusEnvioAtivo, StatusCancelado},
	StatusEmAtendimento:     {StatusFila, StatusAguardandoCliente, StatusAguardandoInterno, StatusConcluido, StatusEncerrado, StatusCancelado},
	StatusAguardandoCliente: {StatusEmAtendimento, StatusEncerrado, StatusCancelado},
	StatusAguardandoInterno: {StatusEmAtendimento, StatusAguardandoCliente, StatusEncerrado, StatusCancelado},
	StatusEnvioAtivo:        {StatusEmAtendimento, StatusConcluido, StatusEncerrado, StatusCancelado},
	StatusConcluido:         {StatusEncerrado, StatusFila},
	StatusEncerrado:         {StatusFila},
	StatusCancelado:         {StatusFila},
}

// transitionDescriptions holds human-readable rationales for the common
// transitions, surfaced to agents in the timeline of a ticket.
var transitionDescriptions = map[[2]TicketStatus]string{
	{StatusFila, StatusEmAtendimento}:              "Ticket assumido por um atendente",
	{StatusFila, StatusEnvioAtivo}:                 "Envio ativo iniciado a partir da fila",
	{StatusFila, StatusCancelado}:                  "Ticket cancelado antes do atendimento",
	{StatusEmAtendimento, StatusFila}:              "Ticket devolvido à fila",
	{StatusEmAtendimento, StatusAguardandoCliente}: "Aguardando resposta do cliente",
	{StatusEmAtendimento, StatusAguardandoInterno}: "Aguardando tratativa interna",
	{StatusEmAtendimento, StatusConcluido}:         "Atendimento concluído",
	{StatusEmAtendimento, StatusEncerrado}:         "Ticket encerrado durante o atendimento",
	{StatusAguardandoCliente, StatusEmAtendimento}: "Cliente respondeu, atendimento retomado",
	{StatusAguardandoInterno, StatusEmAtendimento}: "Tratativa interna finalizada, atendimento retomado",
	{StatusConcluido, StatusEncerrado}:             "Ticket concluído foi encerrado",
	{StatusEncerrado, StatusFila}:                  "Ticket reaberto e devolvido à fila",
	{StatusCancelado, StatusFila}:                  "Ticket cancelado foi reaberto",
}

// IsValidTransition reports whether a ticket may move from one status to
// another. Moving a status onto itself is always a permitted no-op,
// regardless of the table contents.
func IsValidTransition(from, to TicketStatus) bool {
	if from == to {
		return true
	}
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextValidStates returns the statuses a ticket in the given status may move
// to. The returned slice is a copy; an empty slice means only the no-op
// self-transition remains.
func NextValidStates(from TicketStatus) []TicketStatus {
	next := statusTransitions[from]
	out := make([]TicketStatus, len(next))
	copy(out, next)
	return out
}

// DescribeTransition returns a human-readable rationale for a transition.
// Unknown pairs get a generic description rather than an error so callers
// can log any pair they encounter.
func DescribeTransition(from, to TicketStatus) string {
	if desc, ok := transitionDescriptions[[2]TicketStatus{from, to}]; ok {
		return desc
	}
	return fmt.Sprintf("Status alterado de %s para %s", from, to)
}

// ExplainRejection builds the error message shown when a transition is
// refused, listing the statuses that would have been accepted.
func ExplainRejection(from, to TicketStatus) string {
	next := statusTransitions[from]
	if len(next) == 0 {
		return fmt.Sprintf("Transição de %s para %s não permitida: %s não possui transições de saída", from, to, from)
	}
	valid := ""
	for i, s := range next {
		if i > 0 {
			valid += ", "
		}
		valid += string(s)
	}
	return fmt.Sprintf("Transição de %s para %s não permitida. Transições válidas: %s", from, to, valid)
}
