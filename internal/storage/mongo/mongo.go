// mongo — реализация storage.CommentStorage на MongoDB (COMMENTS_BACKEND=mongo).
package mongo

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/pribylovaa/go-blog/internal/storage"
)

const (
	commentsCollection = "comments"
	defaultDBName      = "blog"
)

// Mongo — адаптер подключения и коллекции комментариев.
type Mongo struct {
	client   *mongodriver.Client
	comments *mongodriver.Collection
}

var _ storage.CommentStorage = (*Mongo)(nil)

// New подключается к MongoDB, проверяет соединение и создаёт индексы.
// Имя базы берётся из пути URI.
func New(ctx context.Context, uri string) (*Mongo, error) {
	const op = "storage.mongo.New"

	if uri == "" {
		return nil, fmt.Errorf("%s: empty uri", op)
	}

	cli, err := mongodriver.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%s: connect: %w", op, err)
	}

	if err := cli.Ping(ctx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	m := &Mongo{
		client:   cli,
		comments: cli.Database(databaseFromURI(uri)).Collection(commentsCollection),
	}

	if err := m.ensureIndexes(ctx); err != nil {
		_ = m.Close(context.Background())
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return m, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

// ensureIndexes:
//   - корневые комментарии поста: post_id + parent_id + created_at(desc);
//   - ответы: parent_id + created_at(asc);
//   - очередь модерации: approved + created_at.
func (m *Mongo) ensureIndexes(ctx context.Context) error {
	idx := []mongodriver.IndexModel{
		{
			Keys:    bson.D{{Key: "post_id", Value: 1}, {Key: "parent_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("post_parent_created_desc"),
		},
		{
			Keys:    bson.D{{Key: "parent_id", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("parent_created_asc"),
		},
		{
			Keys:    bson.D{{Key: "approved", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("approved_created_asc"),
		},
	}

	if _, err := m.comments.Indexes().CreateMany(ctx, idx); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}

	return nil
}

// databaseFromURI извлекает имя базы из пути mongodb URI; иначе — defaultDBName.
func databaseFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err == nil {
		if name := strings.Trim(u.Path, "/"); name != "" {
			return name
		}
	}

	return defaultDBName
}
