package database

import (
	"database/sql"
)

// InsertRawItem enqueues a collected item. Returns false if an item with the
// same id or source URL already exists.
func (db *DB) InsertRawItem(item *RawItem) (bool, error) {
	_, err := db.conn.Exec(
		`INSERT INTO raw_items (id, influencer_slug, influencer_name, source_type, source_url, title, content)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.InfluencerSlug, item.InfluencerName, item.SourceType,
		item.SourceURL, item.Title, item.Content,
	)
	if err != nil {
		// Duplicate id or URL constraint
		return false, nil //nolint: nilerr
	}
	return true, nil
}

// HasSourceURL reports whether any raw item or insight already references
// the URL, so collectors can skip known content cheaply.
func (db *DB) HasSourceURL(url string) (bool, error) {
	var count int
	err := db.conn.QueryRow(
		`SELECT (SELECT COUNT(*) FROM raw_items WHERE source_url = ?)
		      + (SELECT COUNT(*) FROM insights WHERE source_url = ?)`,
		url, url,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetItemsNeedingFetch returns raw items with empty content that haven't
// been fetched yet.
func (db *DB) GetItemsNeedingFetch() ([]RawItem, error) {
	rows, err := db.conn.Query(
		`SELECT id, influencer_slug, influencer_name, source_type, source_url,
			title, content, content_fetched, processed, collected_at
		FROM raw_items
		WHERE (content IS NULL OR content = '') AND content_fetched = 0
		ORDER BY collected_at, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRawItems(rows)
}

// UpdateRawItemContent stores fetched content for an item.
func (db *DB) UpdateRawItemContent(itemID string, content *string) error {
	_, err := db.conn.Exec(
		"UPDATE raw_items SET content = ?, content_fetched = 1 WHERE id = ?",
		content, itemID,
	)
	return err
}

// MarkFetchAttempted marks that we tried to fetch content for an item.
func (db *DB) MarkFetchAttempted(itemID string) error {
	_, err := db.conn.Exec(
		"UPDATE raw_items SET content_fetched = 1 WHERE id = ?", itemID,
	)
	return err
}

// GetUnprocessed returns raw items with content that haven't produced an
// insight yet, oldest first.
func (db *DB) GetUnprocessed(limit int) ([]RawItem, error) {
	query := `SELECT id, influencer_slug, influencer_name, source_type, source_url,
			title, content, content_fetched, processed, collected_at
		FROM raw_items
		WHERE processed = 0 AND content IS NOT NULL AND content != ''
		ORDER BY collected_at, id`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRawItems(rows)
}

// MarkProcessed records that an item's classification produced an insight.
func (db *DB) MarkProcessed(itemID string) error {
	_, err := db.conn.Exec(
		"UPDATE raw_items SET processed = 1 WHERE id = ?", itemID,
	)
	return err
}

// GetRawItem returns a single raw item by id, or nil if it doesn't exist.
func (db *DB) GetRawItem(itemID string) (*RawItem, error) {
	row := db.conn.QueryRow(
		`SELECT id, influencer_slug, influencer_name, source_type, source_url,
			title, content, content_fetched, processed, collected_at
		FROM raw_items WHERE id = ?`, itemID,
	)
	item, err := scanRawItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

func scanRawItems(rows *sql.Rows) ([]RawItem, error) {
	var items []RawItem
	for rows.Next() {
		item, err := scanRawItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func scanRawItem(row rowScanner) (*RawItem, error) {
	var (
		item      RawItem
		fetched   int
		processed int
	)
	if err := row.Scan(&item.ID, &item.InfluencerSlug, &item.InfluencerName,
		&item.SourceType, &item.SourceURL, &item.Title, &item.Content,
		&fetched, &processed, &item.CollectedAt); err != nil {
		return nil, err
	}
	item.ContentFetched = fetched != 0
	item.Processed = processed != 0
	return &item, nil
}
