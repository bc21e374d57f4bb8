// Package store persists ingested chunks and serves topic-isolated
// nearest-neighbor queries over them.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/flowdial/roundtable/internal/model/knowledge"
	"github.com/flowdial/roundtable/internal/model/persona"
)

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	id         TEXT PRIMARY KEY,
	topic      TEXT NOT NULL,
	text       TEXT NOT NULL,
	embedding  TEXT NOT NULL,
	source_doc TEXT NOT NULL,
	chunk_offset INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_topic ON chunks(topic);
`

// ChunkDB wraps the SQLite file the ingestion tool writes chunks into. The
// serving path only ever reads from it.
type ChunkDB struct {
	db *sql.DB
}

// OpenChunkDB opens (creating if needed) the chunk database at path.
func OpenChunkDB(path string) (*ChunkDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open chunk db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init chunk schema: %w", err)
	}
	return &ChunkDB{db: db}, nil
}

// Close releases the underlying database handle.
func (c *ChunkDB) Close() error { return c.db.Close() }

// InsertChunks persists ingested chunks. Chunks are immutable once stored.
func (c *ChunkDB) InsertChunks(ctx context.Context, chunks []knowledge.Chunk) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, topic, text, embedding, source_doc, chunk_offset) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		embedding, err := json.Marshal(chunk.Embedding)
		if err != nil {
			return fmt.Errorf("encode embedding for chunk %s: %w", chunk.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			chunk.ID, string(chunk.Topic), chunk.Text, string(embedding),
			chunk.SourceDocumentID, chunk.Offset); err != nil {
			return fmt.Errorf("insert chunk %s: %w", chunk.ID, err)
		}
	}

	return tx.Commit()
}

// LoadTopic returns every chunk stored under the topic, ordered by ID.
func (c *ChunkDB) LoadTopic(ctx context.Context, topic persona.Topic) ([]knowledge.Chunk, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, topic, text, embedding, source_doc, chunk_offset FROM chunks WHERE topic = ? ORDER BY id`,
		string(topic))
	if err != nil {
		return nil, fmt.Errorf("load topic %s: %w", topic, err)
	}
	defer rows.Close()

	var chunks []knowledge.Chunk
	for rows.Next() {
		var (
			chunk    knowledge.Chunk
			topicRaw string
			embRaw   string
		)
		if err := rows.Scan(&chunk.ID, &topicRaw, &chunk.Text, &embRaw,
			&chunk.SourceDocumentID, &chunk.Offset); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunk.Topic = persona.Topic(topicRaw)
		if err := json.Unmarshal([]byte(embRaw), &chunk.Embedding); err != nil {
			return nil, fmt.Errorf("decode embedding for chunk %s: %w", chunk.ID, err)
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// CountTopic returns the number of chunks stored under a topic.
func (c *ChunkDB) CountTopic(ctx context.Context, topic persona.Topic) (int, error) {
	var count int
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunks WHERE topic = ?`, string(topic)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count topic %s: %w", topic, err)
	}
	return count, nil
}
