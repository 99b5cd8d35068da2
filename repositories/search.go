//go:generate go run go.uber.org/mock/mockgen -source=search.go -destination=../mocks/mock_search_index.go -package=mocks
package repositories

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	"log/slog"
	"strconv"

	"github.com/blugelabs/bluge"
)

const defaultSearchLimit = 50

const (
	fieldText     = "text"
	fieldFrom     = "from"
	fieldTo       = "to"
	fieldType     = "type"
	fieldSequence = "seq"
	fieldID       = "_id"
)

type ISearchIndex interface {
	Index(message domain.Message) error
	Search(ctx context.Context, viewer, query string, limit int) ([]uint64, error)
}

// SearchIndex is a full-text index over the message log, keyed by sequence.
// Only what is needed to filter and sort is indexed; content is loaded back
// from the log.
type SearchIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewSearchIndex(writer *bluge.Writer, log *slog.Logger) *SearchIndex {
	return &SearchIndex{writer: writer, log: log}
}

func (s *SearchIndex) Index(message domain.Message) error {
	doc := bluge.NewDocument(strconv.FormatUint(message.Sequence, 10)).
		AddField(bluge.NewTextField(fieldText, message.Text)).
		AddField(bluge.NewKeywordField(fieldFrom, message.From)).
		AddField(bluge.NewKeywordField(fieldTo, message.To)).
		AddField(bluge.NewKeywordField(fieldType, string(message.Type))).
		AddField(bluge.NewNumericField(fieldSequence, float64(message.Sequence)).Sortable())
	if err := s.writer.Update(doc.ID(), doc); err != nil {
		return errors.Storage(err)
	}
	return nil
}

// Search returns the sequences of messages matching query that viewer may see,
// newest first. The visibility rule is the one of domain.IsVisible, expressed
// as a boolean query.
func (s *SearchIndex) Search(ctx context.Context, viewer, query string, limit int) ([]uint64, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	reader, err := s.writer.Reader()
	if err != nil {
		return nil, errors.Storage(err)
	}
	defer func() {
		if err := reader.Close(); err != nil {
			s.log.Warn("Failed to close search reader", "error", err)
		}
	}()

	visible := bluge.NewBooleanQuery().
		AddShould(bluge.NewTermQuery(string(domain.PublicMessage)).SetField(fieldType)).
		AddShould(bluge.NewTermQuery(domain.Broadcast).SetField(fieldFrom)).
		AddShould(bluge.NewTermQuery(viewer).SetField(fieldTo)).
		AddShould(bluge.NewTermQuery(viewer).SetField(fieldFrom)).
		SetMinShould(1)
	q := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(query).SetField(fieldText)).
		AddMust(visible)

	request := bluge.NewTopNSearch(limit, q).SortBy([]string{"-" + fieldSequence})
	matches, err := reader.Search(ctx, request)
	if err != nil {
		return nil, errors.Storage(err)
	}

	var sequences []uint64
	match, err := matches.Next()
	for err == nil && match != nil {
		var parseErr error
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field != fieldID {
				return true
			}
			var seq uint64
			seq, parseErr = strconv.ParseUint(string(value), 10, 64)
			if parseErr == nil {
				sequences = append(sequences, seq)
			}
			return false
		})
		if err == nil {
			err = parseErr
		}
		if err == nil {
			match, err = matches.Next()
		}
	}
	if err != nil {
		return nil, errors.Storage(err)
	}
	return sequences, nil
}
