package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	imodels "github.com/pribylovaa/go-blog/internal/models"
	"github.com/pribylovaa/go-blog/internal/storage"
	"github.com/pribylovaa/go-blog/pkg/models"
)

// document — комментарий в коллекции; идентификаторы хранятся строками UUID,
// у корневого комментария parent_id пустой.
type document struct {
	ID         string    `bson:"_id"`
	Content    string    `bson:"content"`
	AuthorID   string    `bson:"author_id,omitempty"`
	GuestName  *string   `bson:"guest_name,omitempty"`
	GuestEmail *string   `bson:"guest_email,omitempty"`
	PostID     string    `bson:"post_id"`
	ParentID   string    `bson:"parent_id"`
	Approved   bool      `bson:"approved"`
	CreatedAt  time.Time `bson:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

// MongoDB DateTime хранит миллисекунды.
func toMS(t time.Time) time.Time { return t.UTC().Truncate(time.Millisecond) }

func toDocument(c *models.Comment) document {
	d := document{
		ID:         c.ID.String(),
		Content:    c.Content,
		GuestName:  c.GuestName,
		GuestEmail: c.GuestEmail,
		PostID:     c.PostID.String(),
		Approved:   c.Approved,
		CreatedAt:  toMS(c.CreatedAt),
		UpdatedAt:  toMS(c.UpdatedAt),
	}

	if c.AuthorID != nil {
		d.AuthorID = c.AuthorID.String()
	}

	if c.ParentID != nil {
		d.ParentID = c.ParentID.String()
	}

	return d
}

func (d *document) comment() (models.Comment, error) {
	c := models.Comment{
		Content:    d.Content,
		GuestName:  d.GuestName,
		GuestEmail: d.GuestEmail,
		Approved:   d.Approved,
		CreatedAt:  d.CreatedAt.UTC(),
		UpdatedAt:  d.UpdatedAt.UTC(),
	}

	var err error
	if c.ID, err = uuid.Parse(d.ID); err != nil {
		return c, fmt.Errorf("bad _id %q: %w", d.ID, err)
	}

	if c.PostID, err = uuid.Parse(d.PostID); err != nil {
		return c, fmt.Errorf("bad post_id %q: %w", d.PostID, err)
	}

	if d.AuthorID != "" {
		id, err := uuid.Parse(d.AuthorID)
		if err != nil {
			return c, fmt.Errorf("bad author_id %q: %w", d.AuthorID, err)
		}
		c.AuthorID = &id
	}

	if d.ParentID != "" {
		id, err := uuid.Parse(d.ParentID)
		if err != nil {
			return c, fmt.Errorf("bad parent_id %q: %w", d.ParentID, err)
		}
		c.ParentID = &id
	}

	return c, nil
}

// SaveComment вставляет комментарий. У ответа родитель должен существовать
// в том же посте, иначе storage.ErrInvalidReference.
func (m *Mongo) SaveComment(ctx context.Context, c *models.Comment) error {
	const op = "storage.mongo.SaveComment"

	doc := toDocument(c)

	if doc.ParentID != "" {
		n, err := m.comments.CountDocuments(ctx, bson.D{
			{Key: "_id", Value: doc.ParentID},
			{Key: "post_id", Value: doc.PostID},
		})
		if err != nil {
			return fmt.Errorf("%s: find parent: %w", op, err)
		}

		if n == 0 {
			return fmt.Errorf("%s: %w", op, storage.ErrInvalidReference)
		}
	}

	if _, err := m.comments.InsertOne(ctx, doc); err != nil {
		if mongodriver.IsDuplicateKeyError(err) {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: insert: %w", op, err)
	}

	return nil
}

func (m *Mongo) CommentByID(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	const op = "storage.mongo.CommentByID"

	var doc document
	if err := m.comments.FindOne(ctx, bson.D{{Key: "_id", Value: id.String()}}).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c, err := doc.comment()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &c, nil
}

// ListRootComments — одобренные корневые комментарии поста; created_at DESC, _id.
func (m *Mongo) ListRootComments(ctx context.Context, postID uuid.UUID, page imodels.Page) ([]models.Comment, int, error) {
	const op = "storage.mongo.ListRootComments"

	filter := bson.D{
		{Key: "post_id", Value: postID.String()},
		{Key: "parent_id", Value: ""},
		{Key: "approved", Value: true},
	}

	out, total, err := m.page(ctx, filter, bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}, page)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	return out, total, nil
}

// ListReplies — одобренные ответы на набор комментариев; created_at ASC, _id.
func (m *Mongo) ListReplies(ctx context.Context, parentIDs []uuid.UUID) ([]models.Comment, error) {
	const op = "storage.mongo.ListReplies"

	if len(parentIDs) == 0 {
		return []models.Comment{}, nil
	}

	ids := make(bson.A, 0, len(parentIDs))
	for _, id := range parentIDs {
		ids = append(ids, id.String())
	}

	filter := bson.D{
		{Key: "parent_id", Value: bson.D{{Key: "$in", Value: ids}}},
		{Key: "approved", Value: true},
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	out, err := m.find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// ListPending — очередь модерации, старые первыми.
func (m *Mongo) ListPending(ctx context.Context, page imodels.Page) ([]models.Comment, int, error) {
	const op = "storage.mongo.ListPending"

	out, total, err := m.page(ctx,
		bson.D{{Key: "approved", Value: false}},
		bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}},
		page)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	return out, total, nil
}

func (m *Mongo) ApproveComment(ctx context.Context, id uuid.UUID) error {
	const op = "storage.mongo.ApproveComment"

	res, err := m.comments.UpdateByID(ctx, id.String(), bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "approved", Value: true},
			{Key: "updated_at", Value: toMS(time.Now())},
		}},
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// DeleteComment удаляет комментарий и его ответы (вложенность — один уровень).
func (m *Mongo) DeleteComment(ctx context.Context, id uuid.UUID) error {
	const op = "storage.mongo.DeleteComment"

	res, err := m.comments.DeleteOne(ctx, bson.D{{Key: "_id", Value: id.String()}})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if res.DeletedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	if _, err := m.comments.DeleteMany(ctx, bson.D{{Key: "parent_id", Value: id.String()}}); err != nil {
		return fmt.Errorf("%s: replies: %w", op, err)
	}

	return nil
}

func (m *Mongo) DeletePostComments(ctx context.Context, postID uuid.UUID) error {
	const op = "storage.mongo.DeletePostComments"

	if _, err := m.comments.DeleteMany(ctx, bson.D{{Key: "post_id", Value: postID.String()}}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (m *Mongo) page(ctx context.Context, filter, sort bson.D, page imodels.Page) ([]models.Comment, int, error) {
	total, err := m.comments.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count: %w", err)
	}

	if total == 0 {
		return []models.Comment{}, 0, nil
	}

	opts := options.Find().
		SetSort(sort).
		SetSkip(int64(page.Offset())).
		SetLimit(int64(page.Limit))

	out, err := m.find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}

	return out, int(total), nil
}

func (m *Mongo) find(ctx context.Context, filter bson.D, opts *options.FindOptions) ([]models.Comment, error) {
	cur, err := m.comments.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	defer cur.Close(ctx)

	out := []models.Comment{}
	for cur.Next(ctx) {
		var doc document
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}

		c, err := doc.comment()
		if err != nil {
			return nil, err
		}

		out = append(out, c)
	}

	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("cursor: %w", err)
	}

	return out, nil
}
