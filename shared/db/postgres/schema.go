package postgres

var schema = []string{
	`CREATE TABLE IF NOT EXISTS product (
		id SERIAL PRIMARY KEY,
		product_description VARCHAR(500),
		product_price VARCHAR(10),
		product_image TEXT
	)`,
}
