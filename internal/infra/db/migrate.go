package db

import (
	"database/sql"
	_ "embed"
)

//go:embed seeds/sources.sql
var seedSourcesSQL string

func MigrateUp(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS sources (
    id               SERIAL PRIMARY KEY,
    name             TEXT NOT NULL,
    url              TEXT NOT NULL UNIQUE,
    kind             VARCHAR(20) NOT NULL DEFAULT 'feed',
    config           JSONB,
    config_version   INTEGER NOT NULL DEFAULT 1,
    ai_healed_config BOOLEAN NOT NULL DEFAULT FALSE,
    active           BOOLEAN NOT NULL DEFAULT TRUE,
    status           VARCHAR(20) NOT NULL DEFAULT 'pending',
    error_count      INTEGER NOT NULL DEFAULT 0,
    last_crawled_at  TIMESTAMPTZ,
    last_error       TEXT,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS contents (
    id               SERIAL PRIMARY KEY,
    source_id        INTEGER REFERENCES sources(id),
    title            TEXT NOT NULL,
    url              TEXT UNIQUE,
    body             TEXT,
    content_hash     VARCHAR(64) UNIQUE,
    published_at     TIMESTAMPTZ,
    created_at       TIMESTAMPTZ DEFAULT now(),
    status           VARCHAR(20) NOT NULL DEFAULT 'new',
    summary          TEXT,
    categories       JSONB,
    entities         JSONB,
    sentiment        VARCHAR(20),
    relevance_score  DOUBLE PRECISION NOT NULL DEFAULT 0,
    importance_score DOUBLE PRECISION NOT NULL DEFAULT 0,
    key_topics       JSONB
)`); err != nil {
		return err
	}

	// パフォーマンス最適化: インデックス追加
	indexes := []string{
		// ORDER BY published_at DESC で使用(全クエリで使用)
		`CREATE INDEX IF NOT EXISTS idx_contents_published_at ON contents(published_at DESC)`,
		// ソース別コンテンツ取得用
		`CREATE INDEX IF NOT EXISTS idx_contents_source_id ON contents(source_id)`,
		// パイプライン段階フィルタリング用(status='new'/'processed'/'notified'/'archived')
		`CREATE INDEX IF NOT EXISTS idx_contents_status ON contents(status)`,
		// アクティブソース絞り込み用(WHERE active = TRUE)
		`CREATE INDEX IF NOT EXISTS idx_sources_active ON sources(active) WHERE active = TRUE`,
		// ソース種別フィルタリング用(Web Scraper対応)
		`CREATE INDEX IF NOT EXISTS idx_sources_kind ON sources(kind)`,
	}

	// pg_trgm拡張を有効化(ILIKE検索高速化用)
	// エラーを無視(既に存在する場合やスーパーユーザー権限がない場合)
	_, _ = db.Exec(`CREATE EXTENSION IF NOT EXISTS pg_trgm`)

	// ILIKE検索用GINインデックス追加(マルチキーワード検索高速化)
	searchIndexes := []string{
		// コンテンツタイトル・サマリーのILIKE検索用
		`CREATE INDEX IF NOT EXISTS idx_contents_title_gin ON contents USING gin(title gin_trgm_ops)`,
		`CREATE INDEX IF NOT EXISTS idx_contents_summary_gin ON contents USING gin(summary gin_trgm_ops)`,
		// ソース名・URLのILIKE検索用
		`CREATE INDEX IF NOT EXISTS idx_sources_name_gin ON sources USING gin(name gin_trgm_ops)`,
		`CREATE INDEX IF NOT EXISTS idx_sources_url_gin ON sources USING gin(url gin_trgm_ops)`,
	}
	for _, idx := range searchIndexes {
		// pg_trgm拡張がない場合はエラーになるため無視
		_, _ = db.Exec(idx)
	}

	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return err
		}
	}

	// Web Scraper対応: kind制約追加
	// PostgreSQL特有の制約構文のため、エラーを無視(既に存在する場合)
	_, _ = db.Exec(`
DO $$
BEGIN
    IF NOT EXISTS (
        SELECT 1 FROM pg_constraint
        WHERE conname = 'chk_source_kind'
    ) THEN
        ALTER TABLE sources ADD CONSTRAINT chk_source_kind
        CHECK (kind IN ('feed', 'html', 'channel-feed', 'search-index', 'api'));
    END IF;
END $$;
`)

	// Embedding Feature: pgvector拡張を有効化
	// エラーを無視(既に存在する場合やスーパーユーザー権限がない場合)
	_, _ = db.Exec(`CREATE EXTENSION IF NOT EXISTS vector`)

	// Embedding Feature: content_embeddings テーブル作成
	// Note: content_id is INTEGER to match contents.id (SERIAL = INTEGER)
	// Note: vector(1536) is fixed size for OpenAI text-embedding-3-small model
	//       The dimension column stores metadata for validation purposes
	//       If multi-dimension support is needed, consider separate tables per dimension
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS content_embeddings (
    id              SERIAL PRIMARY KEY,
    content_id      INTEGER NOT NULL REFERENCES contents(id) ON DELETE CASCADE,
    embedding_type  VARCHAR(50) NOT NULL,
    provider        VARCHAR(50) NOT NULL,
    model           VARCHAR(100) NOT NULL,
    dimension       INT NOT NULL,
    embedding       vector(1536) NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE(content_id, embedding_type, provider, model)
)`); err != nil {
		return err
	}

	// Embedding Feature: content_embeddings インデックス追加
	embeddingIndexes := []string{
		// content_id による検索用 B-tree インデックス
		`CREATE INDEX IF NOT EXISTS idx_content_embeddings_content_id ON content_embeddings(content_id)`,
	}
	for _, idx := range embeddingIndexes {
		if _, err := db.Exec(idx); err != nil {
			return err
		}
	}

	// Embedding Feature: IVFFlat ベクトル類似検索インデックス
	// エラーを無視(pgvector拡張がない場合にエラーとなるため)
	// lists=100 は <1M レコードに適した値
	_, _ = db.Exec(`
CREATE INDEX IF NOT EXISTS idx_content_embeddings_vector
    ON content_embeddings USING ivfflat (embedding vector_cosine_ops)
    WITH (lists = 100)`)

	// Pipeline Coordinator: job_executions テーブル作成(C9)
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS job_executions (
    id           SERIAL PRIMARY KEY,
    source_id    INTEGER NOT NULL REFERENCES sources(id),
    state        VARCHAR(20) NOT NULL DEFAULT 'idle',
    started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    finished_at  TIMESTAMPTZ,
    items_found  INTEGER NOT NULL DEFAULT 0,
    items_new    INTEGER NOT NULL DEFAULT 0,
    retry_count  INTEGER NOT NULL DEFAULT 0,
    error        TEXT
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_job_executions_source_id ON job_executions(source_id)`); err != nil {
		return err
	}

	// Keyword Matcher: keyword_groups / keywords テーブル作成(C6)
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS keyword_groups (
    id         SERIAL PRIMARY KEY,
    name       TEXT NOT NULL UNIQUE,
    active     BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS keywords (
    id        SERIAL PRIMARY KEY,
    group_id  INTEGER NOT NULL REFERENCES keyword_groups(id) ON DELETE CASCADE,
    term      TEXT NOT NULL,
    synonyms  JSONB
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_keywords_group_id ON keywords(group_id)`); err != nil {
		return err
	}

	// シードデータの投入(重複は自動的にスキップ)
	if _, err := db.Exec(seedSourcesSQL); err != nil {
		return err
	}

	return nil
}

// MigrateDown rolls back the database schema.
// This function removes tables and indexes in reverse order of creation.
// Use with caution: this will delete all data in the affected tables.
func MigrateDown(db *sql.DB) error {
	// Embedding Feature: Drop content_embeddings table and related objects
	// Drop indexes first (CASCADE will handle this automatically, but explicit is safer)
	dropStatements := []string{
		// Drop IVFFlat vector index
		`DROP INDEX IF EXISTS idx_content_embeddings_vector`,
		// Drop content_id index
		`DROP INDEX IF EXISTS idx_content_embeddings_content_id`,
		// Drop content_embeddings table (CASCADE to handle foreign key references)
		`DROP TABLE IF EXISTS content_embeddings CASCADE`,
	}

	for _, stmt := range dropStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	// Note: We do NOT drop the vector extension as it may be used by other tables
	// Note: We do NOT drop sources/contents tables as they are core tables

	return nil
}

// MigrateDownEmbeddingsOnly rolls back only the embedding feature.
// This is a targeted rollback that preserves other schema elements.
func MigrateDownEmbeddingsOnly(db *sql.DB) error {
	dropStatements := []string{
		`DROP INDEX IF EXISTS idx_content_embeddings_vector`,
		`DROP INDEX IF EXISTS idx_content_embeddings_content_id`,
		`DROP TABLE IF EXISTS content_embeddings CASCADE`,
	}

	for _, stmt := range dropStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
