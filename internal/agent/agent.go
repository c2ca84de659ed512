// Package agent implements the conversation/retrieval state machine: answer
// a question from the indexed corpus, detect insufficient context, extend
// the index, and retry once. The insufficiency transition is a value
// comparison against UnknownAnswer, never an error.
package agent

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/bull/wikiquery/internal/config"
	"github.com/bull/wikiquery/internal/sectionizer"
)

// sectionSeparator prefixes each accepted context section; its token cost is
// charged against the context budget per section.
const sectionSeparator = "\n* "

// Corpus is the database capability the agent drives: retrieval, title
// search, and reindexing.
type Corpus interface {
	NearestSections(ctx context.Context, query string, k int) ([]sectionizer.Section, error)
	SearchTitles(ctx context.Context, query string) ([]string, error)
	AddPage(ctx context.Context, title string) (bool, error)
}

// Completer is the completion-provider capability.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// TokenCounter counts model tokens for budget accounting.
type TokenCounter interface {
	Count(text string) int
}

// Agent answers questions grounded in the corpus.
type Agent struct {
	corpus        Corpus
	completer     Completer
	counter       TokenCounter
	contextBudget int
	maxTokens     int
	searchK       int
	logger        *slog.Logger
}

// New creates an Agent with budgets taken from cfg.
func New(corpus Corpus, completer Completer, counter TokenCounter, cfg *config.Config, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	searchK := cfg.SearchK
	if searchK <= 0 {
		searchK = 4
	}
	return &Agent{
		corpus:        corpus,
		completer:     completer,
		counter:       counter,
		contextBudget: cfg.ContextTokenBudget,
		maxTokens:     cfg.CompletionMaxTokens,
		searchK:       searchK,
		logger:        logger,
	}
}

// AnswerQuery answers a single standalone question. When the first
// completion reports insufficient context the corpus is extended and the
// query retried exactly once; the second answer is returned as-is even if it
// is again the unknown phrase.
func (a *Agent) AnswerQuery(ctx context.Context, question string) (ChatEntry, error) {
	contextStr, err := a.contextForQuestion(ctx, question)
	if err != nil {
		return ChatEntry{}, err
	}

	answer, err := a.completer.Complete(ctx, answerWithContextPrompt(contextStr, question), a.maxTokens)
	if err != nil {
		return ChatEntry{}, err
	}
	answer = strings.TrimSpace(strings.Trim(answer, "\n"))

	if answer == UnknownAnswer {
		if err := a.reindexForQuestion(ctx, question, nil); err != nil {
			return ChatEntry{}, err
		}
		contextStr, err = a.contextForQuestion(ctx, question)
		if err != nil {
			return ChatEntry{}, err
		}
		answer, err = a.completer.Complete(ctx, answerWithContextPrompt(contextStr, question), a.maxTokens)
		if err != nil {
			return ChatEntry{}, err
		}
		answer = strings.Trim(answer, "\n")
	}

	return ChatEntry{Content: answer, Author: AuthorAgent, Context: contextStr}, nil
}

// Chat answers the latest user turn of a conversation, rewriting it as a
// standalone question against the paired history first.
func (a *Agent) Chat(ctx context.Context, chat []ChatEntry) (ChatEntry, error) {
	question, err := a.summarizeChat(ctx, chat)
	if err != nil {
		return ChatEntry{}, err
	}

	answer, contextStr, err := a.answerChatQuery(ctx, question)
	if err != nil {
		return ChatEntry{}, err
	}

	if answer == UnknownAnswer {
		if err := a.reindexForQuestion(ctx, question, nil); err != nil {
			return ChatEntry{}, err
		}
		contextStr, err = a.contextForQuestion(ctx, question)
		if err != nil {
			return ChatEntry{}, err
		}
		answer, err = a.completer.Complete(ctx, chatWithContextPrompt(contextStr, question), a.maxTokens)
		if err != nil {
			return ChatEntry{}, err
		}
		answer = strings.Trim(answer, "\n")
	}

	return ChatEntry{Content: answer, Author: AuthorAgent, Context: contextStr}, nil
}

// ChatStreaming is the lazy, pull-driven variant of Chat. On sufficient
// context it yields exactly one stop entry. On insufficient context it
// yields an interim entry, one transient progress entry per page resolved
// during reindexing, the retried answer as a transient stop entry, and
// finally the same terminal entry the non-retry path produces. The consumer
// may stop pulling at any yield; pages already indexed stay indexed.
func (a *Agent) ChatStreaming(ctx context.Context, chat []ChatEntry) iter.Seq2[ChatEntry, error] {
	return func(yield func(ChatEntry, error) bool) {
		question, err := a.summarizeChat(ctx, chat)
		if err != nil {
			yield(ChatEntry{}, err)
			return
		}

		answer, contextStr, err := a.answerChatQuery(ctx, question)
		if err != nil {
			yield(ChatEntry{}, err)
			return
		}

		if answer == UnknownAnswer {
			interim := ChatEntry{
				Content: "I don't know, let me see if I can find out",
				Author:  AuthorAgent,
				Context: contextStr,
			}
			if !yield(interim, nil) {
				return
			}

			stopped := false
			err := a.reindexForQuestion(ctx, question, func(title string) bool {
				progress := ChatEntry{
					Content:     "I'm reading... " + title,
					Author:      AuthorAgent,
					IsTransient: true,
				}
				if !yield(progress, nil) {
					stopped = true
					return false
				}
				return true
			})
			if stopped {
				return
			}
			if err != nil {
				yield(ChatEntry{}, err)
				return
			}

			answer, contextStr, err = a.answerChatQuery(ctx, question)
			if err != nil {
				yield(ChatEntry{}, err)
				return
			}
			retried := ChatEntry{
				Content:     answer,
				Author:      AuthorAgent,
				Context:     contextStr,
				IsTransient: true,
				IsStop:      true,
			}
			if !yield(retried, nil) {
				return
			}
		}

		yield(ChatEntry{
			Content: answer,
			Author:  AuthorAgent,
			Context: contextStr,
			IsStop:  true,
		}, nil)
	}
}

// summarizeChat pairs the history into (user, agent) turns and, when more
// than one pair exists, asks the model to rewrite the latest user turn as a
// standalone question. A single-pair chat uses the latest content verbatim.
func (a *Agent) summarizeChat(ctx context.Context, chat []ChatEntry) (string, error) {
	if len(chat) == 0 {
		return "", fmt.Errorf("empty chat")
	}

	var pairs []string
	for i := 0; i+1 < len(chat); i += 2 {
		pairs = append(pairs, chatEntryPrompt(chat[i].Content, chat[i+1].Content))
	}
	question := chat[len(chat)-1].Content

	if len(chat) > 2 {
		history := strings.Join(pairs, "\n")
		rewritten, err := a.completer.Complete(ctx, chatSummarizePrompt(history, question), a.maxTokens)
		if err != nil {
			return "", err
		}
		question = strings.TrimSpace(strings.Trim(rewritten, "\n"))
		a.logger.Debug("Rewrote follow-up as standalone question", "question", question)
	}
	return question, nil
}

// answerChatQuery completes the conversational grounded prompt.
func (a *Agent) answerChatQuery(ctx context.Context, question string) (answer, contextStr string, err error) {
	contextStr, err = a.contextForQuestion(ctx, question)
	if err != nil {
		return "", "", err
	}
	answer, err = a.completer.Complete(ctx, chatWithContextPrompt(contextStr, question), a.maxTokens)
	if err != nil {
		return "", "", err
	}
	return strings.TrimSpace(strings.Trim(answer, "\n")), contextStr, nil
}

// contextForQuestion greedily accepts nearest sections in similarity order
// until the next section would exceed the token budget. Each accepted
// section is charged the separator cost on top of its own tokens.
func (a *Agent) contextForQuestion(ctx context.Context, question string) (string, error) {
	sections, err := a.corpus.NearestSections(ctx, question, a.searchK)
	if err != nil {
		return "", err
	}

	separatorLen := a.counter.Count(sectionSeparator)

	var sb strings.Builder
	used := 0
	for _, sec := range sections {
		used += sec.TokenCount + separatorLen
		if used > a.contextBudget {
			break
		}
		sb.WriteString(sectionSeparator)
		sb.WriteString(strings.ReplaceAll(sec.Content, "\n", " "))
	}
	return sb.String(), nil
}

// reindexForQuestion derives search queries from the question, resolves them
// to candidate titles, and indexes each new page. onTitle, when non-nil, is
// called before each page is fetched; returning false stops the loop. Page
// failures are isolated: one bad page never aborts the rest.
func (a *Agent) reindexForQuestion(ctx context.Context, question string, onTitle func(title string) bool) error {
	queries, err := a.generateSearchQueries(ctx, question)
	if err != nil {
		return fmt.Errorf("generate search queries: %w", err)
	}
	a.logger.Info("Reindexing for question", "queries", queries)

	titles := a.resolveCandidateTitles(ctx, queries)
	for _, title := range titles {
		if onTitle != nil && !onTitle(title) {
			return nil
		}
		added, err := a.corpus.AddPage(ctx, title)
		if err != nil {
			a.logger.Warn("Failed to index page", "title", title, "error", err)
			continue
		}
		if added {
			a.logger.Info("Added page to corpus", "title", title)
		}
	}
	return nil
}

// generateSearchQueries asks the model for search queries, one per non-blank
// line, and appends the original question.
func (a *Agent) generateSearchQueries(ctx context.Context, question string) ([]string, error) {
	out, err := a.completer.Complete(ctx, queryGenerationPrompt(question), a.maxTokens)
	if err != nil {
		return nil, err
	}

	var queries []string
	for _, line := range strings.Split(out, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			queries = append(queries, t)
		}
	}
	return append(queries, question), nil
}

// resolveCandidateTitles runs every query through title search and
// deduplicates the results, preserving resolution order. A failed search is
// logged and skipped.
func (a *Agent) resolveCandidateTitles(ctx context.Context, queries []string) []string {
	seen := make(map[string]struct{})
	var titles []string
	for _, q := range queries {
		found, err := a.corpus.SearchTitles(ctx, q)
		if err != nil {
			a.logger.Warn("Title search failed", "query", q, "error", err)
			continue
		}
		for _, title := range found {
			if _, dup := seen[title]; dup {
				continue
			}
			seen[title] = struct{}{}
			titles = append(titles, title)
		}
	}
	return titles
}
