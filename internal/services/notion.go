package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jomei/notionapi"
	"github.com/rs/zerolog/log"

	"askmemo-backend/internal/config"
	"askmemo-backend/internal/models"
)

// Notion property names of the target database.
const (
	propTitle  = "Title"
	propAnswer = "Answer"
	propDate   = "Date"
	propUser   = "User"
	propRating = "Rating"
)

// NotionService writes rated answers as pages of a Notion database.
type NotionService struct {
	client         *notionapi.Client
	ratingProperty string
}

func NewNotionService(token, ratingProperty string) *NotionService {
	return &NotionService{
		client:         notionapi.NewClient(notionapi.Token(token), notionapi.WithRetry(2)),
		ratingProperty: ratingProperty,
	}
}

// VerifyDatabase checks that the integration can see the target database.
func (s *NotionService) VerifyDatabase(ctx context.Context, databaseID string) error {
	_, err := s.client.Database.Get(ctx, notionapi.DatabaseID(databaseID))
	if err != nil {
		var apiErr *notionapi.Error
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return fmt.Errorf("Notion database not found or not shared with the integration: %w", err)
		}
		return fmt.Errorf("Notion database lookup failed: %w", err)
	}
	return nil
}

func (s *NotionService) CreateRecord(ctx context.Context, databaseID string, rec models.Record) (*models.SavedRecord, error) {
	page, err := s.client.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: buildNotionProperties(rec, s.ratingProperty),
	})
	if err != nil {
		return nil, fmt.Errorf("Notion API error: %w", err)
	}

	log.Debug().Str("page_id", string(page.ID)).Str("database_id", databaseID).Msg("Notion page created")

	return &models.SavedRecord{
		ID:        string(page.ID),
		URL:       page.URL,
		CreatedAt: page.CreatedTime,
	}, nil
}

func buildNotionProperties(rec models.Record, ratingProperty string) notionapi.Properties {
	date := notionapi.Date(rec.Date)

	props := notionapi.Properties{
		propTitle: notionapi.TitleProperty{
			Title: richText(rec.Title),
		},
		propAnswer: notionapi.RichTextProperty{
			RichText: richText(rec.Answer),
		},
		propDate: notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &date},
		},
		propUser: notionapi.RichTextProperty{
			RichText: richText(rec.User),
		},
	}

	if ratingProperty == config.RatingPropertySelect {
		props[propRating] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(rec.Rating)},
		}
	} else {
		props[propRating] = notionapi.MultiSelectProperty{
			MultiSelect: []notionapi.Option{{Name: string(rec.Rating)}},
		}
	}

	return props
}

// notionTextLimit is the maximum length of one rich text object.
const notionTextLimit = 2000

// richText splits content into chunks Notion accepts.
func richText(content string) []notionapi.RichText {
	runes := []rune(content)
	if len(runes) == 0 {
		return []notionapi.RichText{{Text: &notionapi.Text{Content: ""}}}
	}

	var out []notionapi.RichText
	for len(runes) > 0 {
		n := min(len(runes), notionTextLimit)
		out = append(out, notionapi.RichText{Text: &notionapi.Text{Content: string(runes[:n])}})
		runes = runes[n:]
	}
	return out
}
