package services

import (
	"context"
	"regexp"
	"strings"

	"github.com/mnemo-ai/mnemo/internal/domain/entities"
	"github.com/mnemo-ai/mnemo/internal/domain/ports"
)

// Intent is a recognized query shape.
type Intent string

const (
	IntentSelfSummary    Intent = "self_summary"
	IntentEntitySummary  Intent = "entity_summary"
	IntentRelationship   Intent = "relationship_query"
	IntentTemporal       Intent = "temporal"
	IntentHistorical     Intent = "historical"
	IntentNegation       Intent = "negation"
	IntentSentimentTrend Intent = "sentiment_trend"
	IntentDecisions      Intent = "decisions"
	IntentGoals          Intent = "goals"
	IntentStandard       Intent = "standard"
)

// SelfEntityName is the reserved entity each owner's first-person facts
// attach to.
const SelfEntityName = "me"

type intentPattern struct {
	intent  Intent
	pattern *regexp.Regexp
}

// Order matters: first match wins, so the more specific shapes come first.
var intentPatterns = []intentPattern{
	{IntentSelfSummary, regexp.MustCompile(`(?i)^(what do you know about me|who am i|tell me about me|my profile|summarize me)\b`)},
	{IntentNegation, regexp.MustCompile(`(?i)\b(no longer|not anymore|stopped|quit|used to but|doesn't .*anymore|don't .*anymore)\b`)},
	{IntentHistorical, regexp.MustCompile(`(?i)\b(used to|previously|formerly|in the past|back then|before (that|now)|history of)\b`)},
	{IntentTemporal, regexp.MustCompile(`(?i)\b(when did|when was|since when|last (week|month|year)|yesterday|in (january|february|march|april|may|june|july|august|september|october|november|december|\d{4})|on \d|how long)\b`)},
	{IntentSentimentTrend, regexp.MustCompile(`(?i)\b(how (do|does|did) .*(feel|think) about|feelings? (about|towards?)|opinion (of|about|on)|sentiment)\b`)},
	{IntentDecisions, regexp.MustCompile(`(?i)\b(decide[ds]?|decision|chose|chosen|settled on|agreed to)\b`)},
	{IntentGoals, regexp.MustCompile(`(?i)\b(goals?|plans? to|planning|wants? to|aiming|objective|aspir)\b`)},
	{IntentRelationship, regexp.MustCompile(`(?i)\b(how (is|are) .* (related|connected)|relationship between|who knows|connected to|knows about|friends? (of|with)|works? with|colleagues?)\b`)},
	{IntentEntitySummary, regexp.MustCompile(`(?i)^(who is|what is|tell me about|what do you know about|describe)\b`)},
}

// Answer is the routed result handed to the presentation layer.
type Answer struct {
	Intent   Intent
	Query    string
	Subject  *entities.Entity
	Context  *EntityContext
	Results  []Result
	Facts    []entities.Fact
	Nodes    []GraphNode
	Degraded bool
}

// RouterService classifies a query's intent and dispatches it to the right
// lookup strategy.
type RouterService struct {
	relationalDB ports.RelationalDB
	retrieval    *RetrievalService
	graph        *GraphService
}

// NewRouterService creates a new RouterService.
func NewRouterService(relationalDB ports.RelationalDB, retrieval *RetrievalService, graph *GraphService) *RouterService {
	return &RouterService{relationalDB: relationalDB, retrieval: retrieval, graph: graph}
}

// Route classifies a query. First matching pattern wins; anything
// unrecognized is a standard ranked retrieval.
func (s *RouterService) Route(query string) Intent {
	trimmed := strings.TrimSpace(query)
	for _, candidate := range intentPatterns {
		if candidate.pattern.MatchString(trimmed) {
			return candidate.intent
		}
	}
	return IntentStandard
}

// Ask routes and answers a query in one step.
func (s *RouterService) Ask(ctx context.Context, ownerID, query string, filters Filters, limit int) (*Answer, error) {
	intent := s.Route(query)
	answer := &Answer{Intent: intent, Query: query}

	switch intent {
	case IntentSelfSummary:
		return s.answerSelf(ctx, ownerID, answer)
	case IntentEntitySummary:
		return s.answerEntity(ctx, ownerID, query, filters, limit, answer)
	case IntentRelationship:
		return s.answerRelationship(ctx, ownerID, query, filters, limit, answer)
	case IntentTemporal:
		return s.answerTemporal(ctx, ownerID, limit, answer)
	case IntentHistorical:
		return s.answerHistorical(ctx, ownerID, query, filters, limit, answer)
	case IntentNegation:
		return s.answerNegation(ctx, ownerID, limit, answer)
	case IntentSentimentTrend:
		return s.answerPredicates(ctx, ownerID, []string{"feels_about", "likes", "dislikes"}, limit, answer)
	case IntentDecisions:
		return s.answerPredicates(ctx, ownerID, []string{"decided"}, limit, answer)
	case IntentGoals:
		return s.answerPredicates(ctx, ownerID, []string{"goal", "works_on"}, limit, answer)
	default:
		return s.answerStandard(ctx, ownerID, query, filters, limit, answer)
	}
}

func (s *RouterService) answerSelf(ctx context.Context, ownerID string, answer *Answer) (*Answer, error) {
	self, err := s.relationalDB.FindEntityByName(ctx, ownerID, SelfEntityName)
	if err != nil {
		return nil, err
	}
	if self == nil {
		return answer, nil
	}
	full, err := s.retrieval.FullContext(ctx, ownerID, self.ID, Filters{})
	if err != nil {
		return nil, err
	}
	answer.Subject = self
	answer.Context = full
	return answer, nil
}

func (s *RouterService) answerEntity(ctx context.Context, ownerID, query string, filters Filters, limit int, answer *Answer) (*Answer, error) {
	subject := extractSubject(query)
	if subject != "" {
		entity, err := s.relationalDB.FindEntityByName(ctx, ownerID, subject)
		if err != nil {
			return nil, err
		}
		if entity != nil && entity.Sensitivity.Rank() <= ceilingRank(filters) {
			full, err := s.retrieval.FullContext(ctx, ownerID, entity.ID, Filters{})
			if err != nil {
				return nil, err
			}
			answer.Subject = entity
			answer.Context = full
			return answer, nil
		}
	}
	return s.answerStandard(ctx, ownerID, query, filters, limit, answer)
}

func (s *RouterService) answerRelationship(ctx context.Context, ownerID, query string, filters Filters, limit int, answer *Answer) (*Answer, error) {
	results, err := s.retrieval.Search(ctx, ownerID, query, GraphFirstProfile, filters, 1)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return answer, nil
	}
	answer.Subject = results[0].Entity
	answer.Degraded = results[0].Degraded

	nodes, err := s.graph.Traverse(ctx, ownerID, results[0].Entity.ID, 2, 0.2)
	if err != nil {
		return nil, err
	}
	if len(nodes) > limit && limit > 0 {
		nodes = nodes[:limit]
	}
	answer.Nodes = nodes
	return answer, nil
}

func (s *RouterService) answerTemporal(ctx context.Context, ownerID string, limit int, answer *Answer) (*Answer, error) {
	now := timeNow()
	from := now.AddDate(-1, 0, 0)
	facts, err := s.relationalDB.FindFactsInWindow(ctx, ownerID, from, now, resultLimit(limit))
	if err != nil {
		return nil, err
	}
	answer.Facts = facts
	return answer, nil
}

func (s *RouterService) answerHistorical(ctx context.Context, ownerID, query string, filters Filters, limit int, answer *Answer) (*Answer, error) {
	filters.IncludeArchived = true
	results, err := s.retrieval.Search(ctx, ownerID, query, DefaultProfile, filters, resultLimit(limit))
	if err != nil {
		return nil, err
	}
	answer.Results = results

	facts, err := s.relationalDB.FindClosedFacts(ctx, ownerID, resultLimit(limit))
	if err != nil {
		return nil, err
	}
	answer.Facts = facts
	return answer, nil
}

func (s *RouterService) answerNegation(ctx context.Context, ownerID string, limit int, answer *Answer) (*Answer, error) {
	facts, err := s.relationalDB.FindClosedFacts(ctx, ownerID, resultLimit(limit))
	if err != nil {
		return nil, err
	}
	answer.Facts = facts
	return answer, nil
}

func (s *RouterService) answerPredicates(ctx context.Context, ownerID string, predicates []string, limit int, answer *Answer) (*Answer, error) {
	facts, err := s.relationalDB.FindFactsByPredicates(ctx, ownerID, predicates, resultLimit(limit))
	if err != nil {
		return nil, err
	}
	answer.Facts = facts
	return answer, nil
}

func (s *RouterService) answerStandard(ctx context.Context, ownerID, query string, filters Filters, limit int, answer *Answer) (*Answer, error) {
	results, err := s.retrieval.Search(ctx, ownerID, query, DefaultProfile, filters, resultLimit(limit))
	if err != nil {
		return nil, err
	}
	answer.Results = results
	for _, result := range results {
		if result.Degraded {
			answer.Degraded = true
			break
		}
	}
	return answer, nil
}

var subjectPrefix = regexp.MustCompile(`(?i)^(who is|what is|tell me about|what do you know about|describe)\s+`)

// extractSubject strips the question prefix and punctuation to get the
// entity name out of "who is X?" style queries.
func extractSubject(query string) string {
	rest := subjectPrefix.ReplaceAllString(strings.TrimSpace(query), "")
	rest = strings.Trim(rest, " ?!.")
	if rest == strings.TrimSpace(query) {
		return ""
	}
	return rest
}

func ceilingRank(filters Filters) int {
	ceiling := filters.MaxSensitivity
	if ceiling == "" {
		ceiling = entities.SensitivityNormal
	}
	return ceiling.Rank()
}

func resultLimit(limit int) int {
	if limit <= 0 {
		return 10
	}
	return limit
}
