// Package classify guesses location and sensor type for enriched objects from
// their names, descriptions and units.
package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/database"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/domain"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/enrichment"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/logger"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/metasys"
)

// Sensor types a rule can report.
const (
	TypeTemperature = "temp"
	TypeCO2         = "co2"
)

// Sensor is the part of a stored payload the rules look at.
type Sensor struct {
	ItemReference string
	Description   string
	Units         string
}

// Guess holds whatever a rule could tell. Empty strings and a nil Floor mean unknown.
type Guess struct {
	RealEstate string
	Building   string
	Floor      *int
	Type       string
	Room       string
	SD         string
	NAE        string
	Object     string
	Confidence float64
}

// Classified pairs an object with its collated guess.
type Classified struct {
	Object *domain.Object
	Guess  Guess
}

// Store selects the objects to classify.
type Store interface {
	ListPublishable(ctx context.Context, filter database.PublishFilter) ([]*domain.Object, error)
}

// Classifier applies rules to stored payloads.
type Classifier struct {
	rules []Rule
	log   logger.Logger
}

// New creates a Classifier with the given rules.
func New(log logger.Logger, rules ...Rule) *Classifier {
	return &Classifier{rules: rules, log: log.With(logger.Component("classify"))}
}

// Guess runs every rule on s and collates the results.
func (c *Classifier) Guess(s *Sensor) Guess {
	var guesses []*Guess
	for _, r := range c.rules {
		if g := r.Apply(s); g != nil {
			guesses = append(guesses, g)
		}
	}
	return Collate(guesses)
}

// Classify parses a stored deep fetch payload and guesses from it.
func (c *Classifier) Classify(payload string) (Guess, error) {
	if err := enrichment.Validate([]byte(payload)); err != nil {
		return Guess{}, err
	}
	var detail metasys.ObjectDetail
	if err := json.Unmarshal([]byte(payload), &detail); err != nil {
		return Guess{}, fmt.Errorf("%w: %w", enrichment.ErrMalformedPayload, err)
	}
	var item metasys.ItemSummary
	if err := json.Unmarshal(detail.Item, &item); err != nil {
		return Guess{}, fmt.Errorf("%w: %w", enrichment.ErrMalformedPayload, err)
	}
	return c.Guess(&Sensor{ItemReference: item.ItemReference, Description: item.Description, Units: item.Units}), nil
}

// Run classifies every crawled object under prefix. Objects without a usable payload
// are logged and left out.
func (c *Classifier) Run(ctx context.Context, store Store, prefix string) ([]Classified, error) {
	objects, err := store.ListPublishable(ctx, database.PublishFilter{Prefix: prefix})
	if err != nil {
		return nil, fmt.Errorf("select objects: %w", err)
	}

	out := make([]Classified, 0, len(objects))
	for _, obj := range objects {
		if obj.Response == nil {
			continue
		}
		g, classifyErr := c.Classify(*obj.Response)
		if classifyErr != nil {
			if !errors.Is(classifyErr, enrichment.ErrErrorMessage) {
				c.log.Warn("Cannot classify object", logger.EntityID(obj.ID), logger.Error(classifyErr))
			}
			continue
		}
		out = append(out, Classified{Object: obj, Guess: g})
	}

	c.log.Info("Classification finished",
		logger.String("prefix", prefix),
		logger.Int("selected", len(objects)),
		logger.Int("classified", len(out)),
	)
	return out, nil
}

// Collate keeps, per field, the value of the most confident guess that set it.
// Ties go to the earlier guess. The result carries the highest confidence seen.
func Collate(guesses []*Guess) Guess {
	var out Guess
	var conf struct {
		realEstate, building, floor, typ, room, sd, nae, object float64
	}
	pickString := func(dst *string, best *float64, v string, c float64) {
		if v != "" && c > *best {
			*dst, *best = v, c
		}
	}

	for _, g := range guesses {
		pickString(&out.RealEstate, &conf.realEstate, g.RealEstate, g.Confidence)
		pickString(&out.Building, &conf.building, g.Building, g.Confidence)
		pickString(&out.Type, &conf.typ, g.Type, g.Confidence)
		pickString(&out.Room, &conf.room, g.Room, g.Confidence)
		pickString(&out.SD, &conf.sd, g.SD, g.Confidence)
		pickString(&out.NAE, &conf.nae, g.NAE, g.Confidence)
		pickString(&out.Object, &conf.object, g.Object, g.Confidence)
		if g.Floor != nil && g.Confidence > conf.floor {
			out.Floor, conf.floor = g.Floor, g.Confidence
		}
		if g.Confidence > out.Confidence {
			out.Confidence = g.Confidence
		}
	}
	return out
}
