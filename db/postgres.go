package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/disgoorg/json"
	"github.com/disgoorg/snowflake/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sticker-bot/errs"
	"sticker-bot/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS packs (
	key        TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	data       JSONB NOT NULL
);
CREATE TABLE IF NOT EXISTS users (
	id   BIGINT PRIMARY KEY,
	data JSONB NOT NULL
);
CREATE TABLE IF NOT EXISTS guilds (
	id   BIGINT PRIMARY KEY,
	data JSONB NOT NULL
);`

const (
	insertPackQuery  = "INSERT INTO packs (key, data) VALUES ($1, $2) ON CONFLICT (key) DO NOTHING;"
	selectPackQuery  = "SELECT data FROM packs WHERE key = $1;"
	selectPacksQuery = "SELECT data FROM packs WHERE (data->>'name') ILIKE $1 OR key ILIKE $1 ORDER BY %s OFFSET $2 LIMIT $3;"
	packsByKeysQuery = "SELECT data FROM packs WHERE key = ANY($1);"
	updatePackQuery  = "UPDATE packs SET data = $2 WHERE key = $1;"

	selectUserQuery  = "SELECT data FROM users WHERE id = $1;"
	selectGuildQuery = "SELECT data FROM guilds WHERE id = $1;"
	upsertUserQuery  = "INSERT INTO users (id, data) VALUES ($1, $2) ON CONFLICT (id) DO UPDATE SET data = users.data || jsonb_build_object('username', $3::text, 'avatarURL', $4::text) RETURNING data;"
	upsertGuildQuery = "INSERT INTO guilds (id, data) VALUES ($1, $2) ON CONFLICT (id) DO UPDATE SET data = guilds.data RETURNING data;"
	updateUserQuery  = "UPDATE users SET data = $2 WHERE id = $1;"
	updateGuildQuery = "UPDATE guilds SET data = $2 WHERE id = $1;"
)

type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Migrate creates the document tables if they are missing.
func (db *Postgres) Migrate(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, schema)
	return err
}

func (db *Postgres) CreatePack(ctx context.Context, pack *types.StickerPack) error {
	data, err := json.Marshal(pack)
	if err != nil {
		return err
	}
	tag, err := db.pool.Exec(ctx, insertPackQuery, pack.Key, data)
	if err != nil {
		return errs.Wrap(errs.CodeUpstream, "failed to create a sticker pack", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.Newf(errs.CodeConflict, "there is already a sticker pack with key %q", pack.Key)
	}
	return nil
}

func (db *Postgres) Pack(ctx context.Context, key string) (*types.StickerPack, error) {
	return scanDocument[types.StickerPack](db.pool.QueryRow(ctx, selectPackQuery, key), "sticker pack not found")
}

func (db *Postgres) Packs(ctx context.Context, query PackQuery) ([]types.StickerPack, error) {
	var order string
	switch query.Sort {
	case SortPopular:
		order = "(data->>'subscribers')::int DESC"
	case SortOldest:
		order = "created_at ASC"
	default:
		order = "created_at DESC"
	}
	offset := 0
	if query.Page > 1 {
		offset = (query.Page - 1) * PacksPerPage
	}
	rows, err := db.pool.Query(ctx, fmt.Sprintf(selectPacksQuery, order), "%"+escapeLike(query.Search)+"%", offset, PacksPerPage)
	if err != nil {
		return nil, errs.Wrap(errs.CodeUpstream, "failed to list sticker packs", err)
	}
	return collectDocuments[types.StickerPack](rows)
}

func (db *Postgres) PacksByKeys(ctx context.Context, keys []string) ([]types.StickerPack, error) {
	rows, err := db.pool.Query(ctx, packsByKeysQuery, keys)
	if err != nil {
		return nil, errs.Wrap(errs.CodeUpstream, "failed to fetch sticker packs", err)
	}
	return collectDocuments[types.StickerPack](rows)
}

func (db *Postgres) SavePack(ctx context.Context, pack *types.StickerPack) error {
	return db.saveDocument(ctx, updatePackQuery, pack.Key, pack, "sticker pack not found")
}

func (db *Postgres) User(ctx context.Context, id snowflake.ID) (*types.User, error) {
	return scanDocument[types.User](db.pool.QueryRow(ctx, selectUserQuery, id), "user not found")
}

func (db *Postgres) Guild(ctx context.Context, id snowflake.ID) (*types.Guild, error) {
	return scanDocument[types.Guild](db.pool.QueryRow(ctx, selectGuildQuery, id), "guild not found")
}

func (db *Postgres) GetOrCreateUser(ctx context.Context, id snowflake.ID, username string, avatarURL string) (*types.User, error) {
	data, err := json.Marshal(defaultUser(id, username, avatarURL))
	if err != nil {
		return nil, err
	}
	return scanDocument[types.User](db.pool.QueryRow(ctx, upsertUserQuery, id, data, username, avatarURL), "user not found")
}

func (db *Postgres) GetOrCreateGuild(ctx context.Context, id snowflake.ID) (*types.Guild, error) {
	data, err := json.Marshal(defaultGuild(id))
	if err != nil {
		return nil, err
	}
	return scanDocument[types.Guild](db.pool.QueryRow(ctx, upsertGuildQuery, id, data), "guild not found")
}

func (db *Postgres) SaveUser(ctx context.Context, user *types.User) error {
	return db.saveDocument(ctx, updateUserQuery, user.ID, user, "user not found")
}

func (db *Postgres) SaveGuild(ctx context.Context, guild *types.Guild) error {
	return db.saveDocument(ctx, updateGuildQuery, guild.ID, guild, "guild not found")
}

func (db *Postgres) saveDocument(ctx context.Context, query string, key any, document any, missing string) error {
	data, err := json.Marshal(document)
	if err != nil {
		return err
	}
	tag, err := db.pool.Exec(ctx, query, key, data)
	if err != nil {
		return errs.Wrap(errs.CodeUpstream, "failed to save a document", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.New(errs.CodeNotFound, missing)
	}
	return nil
}

func scanDocument[T any](row pgx.Row, missing string) (*T, error) {
	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.New(errs.CodeNotFound, missing)
		}
		return nil, errs.Wrap(errs.CodeUpstream, "failed to read a document", err)
	}
	var document T
	if err := json.Unmarshal(data, &document); err != nil {
		return nil, err
	}
	return &document, nil
}

func collectDocuments[T any](rows pgx.Rows) ([]T, error) {
	defer rows.Close()
	documents := []T{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, errs.Wrap(errs.CodeUpstream, "failed to read a document", err)
		}
		var document T
		if err := json.Unmarshal(data, &document); err != nil {
			return nil, err
		}
		documents = append(documents, document)
	}
	return documents, rows.Err()
}

// escapeLike neutralizes LIKE metacharacters so user input is matched as a
// literal substring.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
