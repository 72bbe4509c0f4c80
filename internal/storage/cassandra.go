package storage

import (
	"context"
	"time"

	"github.com/gocql/gocql"
)

const createArticlesTable = `
    CREATE TABLE IF NOT EXISTS articles (
        url text PRIMARY KEY,
        run_id text,
        site text,
        batch int,
        title text,
        body text,
        summary text,
        published text,
        genre text,
        keyphrases list<text>,
        pages int,
        attempts int,
        scraped_at timestamp
    )
`

const insertArticle = `
    INSERT INTO articles (
        url, run_id, site, batch, title, body, summary, published, genre, keyphrases, pages, attempts, scraped_at
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

type CassandraStorage struct {
	session *gocql.Session
}

func NewCassandraStorage(hosts []string, keyspace string) (*CassandraStorage, error) {
	cluster := gocql.NewCluster(hosts...)
	cluster.Keyspace = keyspace
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = 10 * time.Second
	session, err := cluster.CreateSession()
	if err != nil {
		return nil, err
	}
	return &CassandraStorage{session: session}, nil
}

func (cs *CassandraStorage) Migrate(ctx context.Context) error {
	return cs.session.Query(createArticlesTable).WithContext(ctx).Exec()
}

// WriteBatch inserts one row per item. url is the primary key, so a
// re-scraped article overwrites its previous row.
func (cs *CassandraStorage) WriteBatch(ctx context.Context, b Batch) error {
	now := time.Now()
	for _, it := range b.Items {
		err := cs.session.Query(insertArticle,
			it.URL,
			b.RunID,
			b.Site,
			b.Number,
			it.Title,
			it.Body,
			it.Summary,
			it.Date,
			it.Genre,
			it.Keyphrases,
			it.Pages,
			it.Attempts,
			now,
		).WithContext(ctx).Exec()
		if err != nil {
			return err
		}
	}
	return nil
}

func (cs *CassandraStorage) Close() error {
	cs.session.Close()
	return nil
}
