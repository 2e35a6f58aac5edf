package sqlite

// schema is applied on every Connect; each statement must be create-if-absent.
// SQLite ignores VARCHAR lengths, so the CHECKs reject what PostgreSQL rejects.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS product (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		product_description VARCHAR(500) CHECK (length(product_description) <= 500),
		product_price VARCHAR(10) CHECK (length(product_price) <= 10),
		product_image TEXT
	)`,
}

// Schema returns the statements Connect applies, for tests that open
// their own connection.
func Schema() []string {
	out := make([]string, len(schema))
	copy(out, schema)
	return out
}
