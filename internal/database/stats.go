package database

// GetStats returns aggregate database statistics.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{
		ByStage:      make(map[string]int),
		BySourceType: make(map[string]int),
	}

	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM insights", &s.TotalInsights},
		{"SELECT COUNT(*) FROM insights WHERE target_audience IS NOT NULL", &s.AudienceClassified},
		{"SELECT COUNT(DISTINCT insight_id) FROM insight_methodology_tags", &s.TaggedInsights},
		{"SELECT COUNT(*) FROM methodologies", &s.Methodologies},
		{"SELECT COUNT(*) FROM methodology_components", &s.Components},
		{"SELECT COUNT(*) FROM insight_methodology_tags", &s.Tags},
		{"SELECT COUNT(*) FROM raw_items", &s.RawItems},
		{"SELECT COUNT(*) FROM raw_items WHERE (content IS NULL OR content = '') AND content_fetched = 0", &s.PendingFetch},
		{"SELECT COUNT(*) FROM raw_items WHERE processed = 0 AND content IS NOT NULL AND content != ''", &s.PendingClassify},
	}

	for _, q := range queries {
		if err := db.conn.QueryRow(q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	grouped := []struct {
		sql  string
		dest map[string]int
	}{
		{"SELECT primary_stage, COUNT(*) FROM insights GROUP BY primary_stage", s.ByStage},
		{"SELECT source_type, COUNT(*) FROM insights GROUP BY source_type", s.BySourceType},
	}

	for _, g := range grouped {
		rows, err := db.conn.Query(g.sql)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var (
				key   string
				count int
			)
			if err := rows.Scan(&key, &count); err != nil {
				rows.Close()
				return nil, err
			}
			g.dest[key] = count
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}

	return s, nil
}
