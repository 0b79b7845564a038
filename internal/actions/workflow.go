package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/tuannvm/ticket-actions/internal/bridge"
	"github.com/tuannvm/ticket-actions/internal/fields"
	log "github.com/tuannvm/ticket-actions/internal/logging"
	"github.com/tuannvm/ticket-actions/internal/models"
)

// payloadFunc computes the value to persist. detail is what the success text shows.
type payloadFunc func(ctx context.Context, ticket *models.TicketContext) (value interface{}, detail string, err error)

// update describes one run of the update workflow
type update struct {
	action   string
	progress string
	fallback string
	payload  payloadFunc

	// exactly one of property and field is set
	property string
	field    *fields.Predicate

	success   func(detail string) string
	afterDone func(ctx context.Context)
}

func (h *Handlers) runUpdate(ctx context.Context, u update) Outcome {
	out := Outcome{Action: u.action}
	h.status.Show(models.StatusMessage{Text: u.progress, Color: models.ColorInfo})

	ticket, err := h.ticket(ctx)
	if err != nil {
		return h.fail(out, u.fallback, fmt.Errorf("failed to read ticket: %w", err))
	}

	value, detail, err := u.payload(ctx, ticket)
	if err != nil {
		return h.fail(out, u.fallback, err)
	}

	target := u.property
	var body map[string]interface{}
	if u.field != nil {
		name, err := h.resolver.Resolve(ctx, *u.field)
		if err != nil {
			return h.fail(out, u.fallback, err)
		}
		target = name
		body = map[string]interface{}{
			"custom_fields": map[string]interface{}{name: value},
		}
	} else {
		body = map[string]interface{}{u.property: value}
	}
	out.Field = target
	out.Value = value

	if err := h.persist(ctx, ticket.ID, body); err != nil {
		return h.fail(out, u.fallback, err)
	}

	// best effort: not every field can be reflected into the visible form
	if err := h.reflect(ctx, target, value); err != nil {
		log.Infof("UI update not supported for %s: %v", target, err)
	}

	if u.afterDone != nil {
		u.afterDone(ctx)
	}

	out.Status = models.StatusMessage{Text: u.success(detail), Color: models.ColorSuccess}
	h.status.ShowTransient(out.Status)
	return out
}

func (h *Handlers) persist(ctx context.Context, ticketID string, body map[string]interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal update payload: %w", err)
	}
	log.Debugf("Sending update payload for ticket %s: %s", ticketID, payload)

	_, err = h.bridge.InvokeTemplate(ctx, bridge.TemplateUpdateTicket, bridge.InvokeOptions{
		Context: map[string]string{"ticket_id": ticketID},
		Body:    payload,
	})
	return err
}

func (h *Handlers) reflect(ctx context.Context, fieldID string, value interface{}) error {
	return h.bridge.SetUIValue(ctx, fieldID, value)
}

func (h *Handlers) fail(out Outcome, fallback string, err error) Outcome {
	log.Errorf("Action %s failed: %v", out.Action, err)
	text := err.Error()
	if text == "" {
		text = fallback
	}
	out.Err = err
	out.Error = text
	out.Status = models.StatusMessage{Text: "Error: " + text, Color: models.ColorError}
	h.status.ShowTransient(out.Status)
	return out
}

func (h *Handlers) warn(out Outcome, text string, err error) Outcome {
	out.Err = err
	out.Error = err.Error()
	out.Status = models.StatusMessage{Text: text, Color: models.ColorWarning}
	h.status.Show(out.Status)
	return out
}

// AddRandomWord appends a random catalog word to the ticket description
func (h *Handlers) AddRandomWord(ctx context.Context) Outcome {
	return h.runUpdate(ctx, update{
		action:   ActionAddWord,
		progress: "Adding word...",
		fallback: "Failed",
		property: bridge.FieldDescription,
		payload: func(_ context.Context, ticket *models.TicketContext) (interface{}, string, error) {
			word := pickWord(h.picker)
			return fmt.Sprintf("%s\n\nRandom Word: %s", ticket.Description, word), word, nil
		},
		success: func(word string) string { return "Added: " + word },
	})
}

// ChangePriority sets the ticket priority to a random catalog priority
func (h *Handlers) ChangePriority(ctx context.Context) Outcome {
	return h.runUpdate(ctx, update{
		action:   ActionChangePriority,
		progress: "Updating...",
		fallback: "Failed",
		property: bridge.FieldPriority,
		payload: func(_ context.Context, _ *models.TicketContext) (interface{}, string, error) {
			p := pickPriority(h.picker)
			return p.Value, p.Name, nil
		},
		success: func(name string) string { return "Priority: " + name },
	})
}

// UpdateJokeField writes a joke from the joke API into the Jokes field
func (h *Handlers) UpdateJokeField(ctx context.Context) Outcome {
	predicate := fields.ByLabelOrName(LabelJokes, LegacyJokesName)
	return h.runUpdate(ctx, update{
		action:   ActionUpdateJoke,
		progress: "Getting joke...",
		fallback: "Update failed",
		field:    &predicate,
		payload: func(ctx context.Context, _ *models.TicketContext) (interface{}, string, error) {
			joke, err := h.fetchJoke(ctx)
			if err != nil {
				return nil, "", err
			}
			return fmt.Sprintf("%s - %s", joke.Setup, joke.Punchline), "", nil
		},
		success: func(string) string { return "Joke added!" },
	})
}

// CreatePost creates a post titled title and records it in the API field.
// A blank title is rejected with a warning before any call is made.
func (h *Handlers) CreatePost(ctx context.Context, title string) Outcome {
	if strings.TrimSpace(title) == "" {
		return h.warn(Outcome{Action: ActionCreatePost}, "Please enter a title",
			fmt.Errorf("%w: title is required", ErrValidationFailed))
	}

	predicate := fields.ByLabelOrName(LabelAPI, LegacyAPIName)
	return h.runUpdate(ctx, update{
		action:   ActionCreatePost,
		progress: "Creating post...",
		fallback: "Failed",
		field:    &predicate,
		payload: func(ctx context.Context, _ *models.TicketContext) (interface{}, string, error) {
			post, err := h.createPost(ctx, title)
			if err != nil {
				return nil, "", err
			}
			return fmt.Sprintf("Post: %s-%s", post.ID, post.Title), post.ID, nil
		},
		success: func(id string) string { return "Post created! ID: " + id },
		afterDone: func(context.Context) {
			if h.widget == nil {
				return
			}
			if err := h.widget.Set(bridge.ElementPostTitleInput, ""); err != nil {
				log.Infof("Could not clear post title input: %v", err)
			}
		},
	})
}

// UpdateChoice persists the dropdown selection verbatim into the Choices field.
// An empty selection is ignored.
func (h *Handlers) UpdateChoice(ctx context.Context, value string) Outcome {
	if value == "" {
		err := fmt.Errorf("%w: empty selection", ErrValidationFailed)
		return Outcome{Action: ActionUpdateChoice, Err: err, Error: err.Error()}
	}

	predicate := fields.ByLabel(LabelChoices)
	return h.runUpdate(ctx, update{
		action:   ActionUpdateChoice,
		progress: "Updating Choices...",
		fallback: "Update failed",
		field:    &predicate,
		payload: func(context.Context, *models.TicketContext) (interface{}, string, error) {
			return value, value, nil
		},
		success: func(v string) string { return "Choices updated to: " + v },
	})
}

func (h *Handlers) fetchJoke(ctx context.Context) (models.Joke, error) {
	resp, err := h.bridge.InvokeTemplate(ctx, bridge.TemplateGetRandomJoke, bridge.InvokeOptions{})
	if err != nil {
		return models.Joke{}, err
	}
	if !gjson.Valid(resp.Response) {
		return models.Joke{}, fmt.Errorf("invalid joke response")
	}
	doc := gjson.Parse(resp.Response)
	joke := models.Joke{
		Setup:     doc.Get("setup").String(),
		Punchline: doc.Get("punchline").String(),
	}
	log.Debugf("Joke API response: %+v", joke)
	return joke, nil
}

func (h *Handlers) createPost(ctx context.Context, title string) (models.Post, error) {
	body, err := json.Marshal(map[string]string{"title": title})
	if err != nil {
		return models.Post{}, fmt.Errorf("failed to marshal post: %w", err)
	}
	resp, err := h.bridge.InvokeTemplate(ctx, bridge.TemplateCreatePost, bridge.InvokeOptions{Body: body})
	if err != nil {
		return models.Post{}, err
	}
	if !gjson.Valid(resp.Response) {
		return models.Post{}, fmt.Errorf("invalid post response")
	}
	doc := gjson.Parse(resp.Response)
	post := models.Post{
		ID:    doc.Get("id").String(),
		Title: doc.Get("title").String(),
	}
	log.Debugf("Post created: %+v", post)
	return post, nil
}
