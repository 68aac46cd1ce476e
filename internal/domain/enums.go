package domain

import (
	"fmt"
	"strings"
)

type DemandType string

const (
	TypeBillingRequest  DemandType = "billing_request"
	TypeAnalysisReturn  DemandType = "analysis_return"
	TypeProposal        DemandType = "proposal"
	TypeDraft           DemandType = "draft"
	TypePowerOfAttorney DemandType = "power_of_attorney"
	TypeClientContact   DemandType = "client_contact"
)

// DemandTypes lists every type in display order.
var DemandTypes = []DemandType{
	TypeBillingRequest,
	TypeAnalysisReturn,
	TypeProposal,
	TypeDraft,
	TypePowerOfAttorney,
	TypeClientContact,
}

func (t DemandType) Valid() bool {
	for _, v := range DemandTypes {
		if v == t {
			return true
		}
	}
	return false
}

func (t DemandType) Label() string {
	switch t {
	case TypeBillingRequest:
		return "Solicitação de Boleto"
	case TypeAnalysisReturn:
		return "Retorno de Análise"
	case TypeProposal:
		return "Proposta"
	case TypeDraft:
		return "Minuta"
	case TypePowerOfAttorney:
		return "Procuração"
	case TypeClientContact:
		return "Contato do Cliente"
	}
	return string(t)
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusConfirmed Status = "confirmed"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusPending, StatusCompleted, StatusConfirmed}

func (s Status) Valid() bool {
	return s == StatusPending || s == StatusCompleted || s == StatusConfirmed
}

// Done reports whether work on the demand is finished, confirmed or not.
func (s Status) Done() bool {
	return s == StatusCompleted || s == StatusConfirmed
}

func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "pendente"
	case StatusCompleted:
		return "concluído"
	case StatusConfirmed:
		return "confirmado"
	}
	return string(s)
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Priorities lists every priority from lowest to highest.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

func (p Priority) Label() string {
	switch p {
	case PriorityLow:
		return "Baixa"
	case PriorityMedium:
		return "Média"
	case PriorityHigh:
		return "Alta"
	}
	return string(p)
}

type Action string

const (
	ActionCreated   Action = "created"
	ActionCompleted Action = "completed"
	ActionConfirmed Action = "confirmed"
)

var Actions = []Action{ActionCreated, ActionCompleted, ActionConfirmed}

func (a Action) Valid() bool {
	return a == ActionCreated || a == ActionCompleted || a == ActionConfirmed
}

func (a Action) Label() string {
	switch a {
	case ActionCreated:
		return "criação"
	case ActionCompleted:
		return "conclusão"
	case ActionConfirmed:
		return "confirmação"
	}
	return string(a)
}

func ParseDemandType(s string) (DemandType, error) {
	t := DemandType(normalize(s))
	if !t.Valid() {
		return "", fmt.Errorf("invalid demand type %q", s)
	}
	return t, nil
}

func ParseStatus(s string) (Status, error) {
	st := Status(normalize(s))
	if !st.Valid() {
		return "", fmt.Errorf("invalid status %q", s)
	}
	return st, nil
}

func ParsePriority(s string) (Priority, error) {
	p := Priority(normalize(s))
	if !p.Valid() {
		return "", fmt.Errorf("invalid priority %q", s)
	}
	return p, nil
}

func ParseAction(s string) (Action, error) {
	a := Action(normalize(s))
	if !a.Valid() {
		return "", fmt.Errorf("invalid action %q", s)
	}
	return a, nil
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("-", "_", " ", "_").Replace(s)
}
