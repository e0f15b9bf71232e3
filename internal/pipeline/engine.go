// Package pipeline drives a single discovered message through the
// triage stages: fetch, classify, route, an optional reply, and the
// cleanup that takes the message out of the unread queue. One run owns
// one record; runs for different messages never share state.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nhle/mail-triage/internal/classify"
	"github.com/nhle/mail-triage/internal/mailstore"
	"github.com/nhle/mail-triage/internal/model"
)

// Stage call deadlines. Mail store operations are short label and
// fetch calls; classification goes to a language model and needs more
// room. A stuck call times out rather than stalling the whole sweep.
const (
	gatewayTimeout  = 30 * time.Second
	classifyTimeout = 60 * time.Second
)

// Engine executes pipeline runs against a mail store and a classifier.
type Engine struct {
	gateway    mailstore.Gateway
	classifier classify.Classifier
	logger     logrus.FieldLogger
}

// New creates an engine over the given collaborators.
func New(
	gateway mailstore.Gateway,
	classifier classify.Classifier,
	logger logrus.FieldLogger,
) *Engine {
	return &Engine{
		gateway:    gateway,
		classifier: classifier,
		logger:     logger,
	}
}

// Run drives one message through the full stage sequence and returns
// the finished record. Stage failures are folded into the record
// instead of aborting: a message that could be fetched always reaches
// the cleanup attempt, whatever happened to classification or the
// reply. attempt is stamped onto the record for the audit trail.
func (e *Engine) Run(ctx context.Context, id string, attempt int) *model.Record {
	rec := model.NewRecord(id)
	if attempt > 1 {
		rec.Attempt = attempt
	}
	defer e.finish(rec)

	content, err := e.fetchContent(ctx, id)
	if err != nil {
		if mailstore.IsNotFound(err) {
			// The message vanished between listing and fetching.
			// Nothing to triage and nothing to clean up.
			rec.Advance(model.StageDropped)
			return rec
		}
		rec.Fail(fmt.Errorf("fetching message: %w", err))
		return rec
	}
	rec.Content = content
	rec.Advance(model.StageFetched)

	result := e.classifyContent(ctx, rec)
	rec.Category = result.Category
	rec.Topic = result.Topic
	rec.Draft = result.Draft
	rec.Advance(model.StageClassified)

	path := Route(rec.Category)
	rec.Advance(model.StageRouted)

	if path == PathReply {
		e.sendReply(ctx, rec)
	}

	e.cleanup(ctx, rec)
	return rec
}

// fetchContent retrieves the message body under the gateway deadline.
func (e *Engine) fetchContent(ctx context.Context, id string) (*model.Content, error) {
	fctx, cancel := context.WithTimeout(ctx, gatewayTimeout)
	defer cancel()

	return e.gateway.FetchContent(fctx, id)
}

// classifyContent produces a verdict for the fetched message. Any
// classifier failure, including a verdict that breaks the category
// rules, degrades to unclassified so the run keeps moving toward
// cleanup. The failure stays visible on the record and in the log.
func (e *Engine) classifyContent(ctx context.Context, rec *model.Record) *classify.Result {
	if result, ok := classify.Preclassify(rec.Content); ok {
		return result
	}

	cctx, cancel := context.WithTimeout(ctx, classifyTimeout)
	defer cancel()

	result, err := e.classifier.Classify(cctx, rec.Content)
	if err == nil {
		switch {
		case result == nil:
			err = &classify.Error{Message: "classifier returned no verdict"}
		case !result.Category.Valid():
			err = &classify.Error{
				Message: fmt.Sprintf("classifier returned unknown category %q", result.Category),
			}
		case result.Category == model.CategoryReplyNeeded && strings.TrimSpace(result.Draft) == "":
			err = &classify.Error{Message: "reply_needed verdict without a draft"}
		}
	}
	if err != nil {
		rec.Fail(err)
		e.logger.WithFields(logrus.Fields{
			"id":    rec.ID,
			"error": err.Error(),
		}).Warn("classification failed, treating message as unclassified")
		return &classify.Result{Category: model.CategoryUnclassified}
	}

	if result.Category != model.CategoryReplyNeeded {
		// A draft on a no-reply category must never reach the send
		// stage on a later code path.
		result.Draft = ""
	}
	return result
}

// sendReply sends the drafted reply. A transport failure marks the
// record send_failed and the run still proceeds to cleanup: a lost
// reply is preferred over a message stuck unread forever, and no
// resend happens inside the same run.
func (e *Engine) sendReply(ctx context.Context, rec *model.Record) {
	sctx, cancel := context.WithTimeout(ctx, gatewayTimeout)
	defer cancel()

	if err := e.gateway.SendReply(sctx, rec.ID, rec.Draft); err != nil {
		rec.SendStatus = model.SendFailed
		rec.Fail(fmt.Errorf("sending reply: %w", err))
		e.logger.WithFields(logrus.Fields{
			"id":    rec.ID,
			"error": err.Error(),
		}).Error("reply not confirmed sent, message will still be cleaned up")
		return
	}

	rec.SendStatus = model.SendSent
	rec.Advance(model.StageSent)
}

// cleanup removes the unread marker. Its success is what keeps the
// message out of the next sweep, so it runs for every fetched record
// regardless of how classification or the reply went.
func (e *Engine) cleanup(ctx context.Context, rec *model.Record) {
	cctx, cancel := context.WithTimeout(ctx, gatewayTimeout)
	defer cancel()

	if err := e.gateway.RemoveUnreadLabel(cctx, rec.ID); err != nil {
		if !mailstore.IsNotFound(err) {
			rec.CleanupStatus = model.CleanupFailed
			rec.Fail(fmt.Errorf("removing unread label: %w", err))
			return
		}
		// The message vanished mid-run. It is out of the unread
		// queue either way, so the run still counts as cleaned up.
	}

	rec.CleanupStatus = model.CleanupDone
	rec.Advance(model.StageCleanedUp)
}

// finish closes out the run: any record that never reached a cleanup
// attempt is marked cleanup failed so no run ends with cleanup still
// pending, and the terminal audit line is emitted.
func (e *Engine) finish(rec *model.Record) {
	if rec.CleanupStatus == model.CleanupPending {
		rec.CleanupStatus = model.CleanupFailed
	}
	rec.FinishedAt = time.Now()

	entry := e.logger.WithFields(logrus.Fields{
		"id":             rec.ID,
		"stage":          rec.Stage.String(),
		"category":       rec.Category.String(),
		"send_status":    rec.SendStatus.String(),
		"cleanup_status": rec.CleanupStatus.String(),
		"attempt":        rec.Attempt,
	})
	if rec.Err != "" {
		entry = entry.WithField("error", rec.Err)
	}
	entry.Info("pipeline run finished")
}
