package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/mvidmar/knjiznica/internal/model"
	"github.com/mvidmar/knjiznica/internal/search"
)

// CreateItem adds a new item to the catalog.
func CreateItem(ctx context.Context, db *sql.DB, item model.Item) (*model.Item, error) {
	item.ID = model.NormalizeItemID(item.ID)
	if item.MediaType == "" {
		item.MediaType = model.MediaTypeForID(item.ID)
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}

	existing, err := GetItem(ctx, db, item.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: item %s already exists", model.ErrValidation, item.ID)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO items (id, title, author, genre, media_type, copies_total, copies_available)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Title, item.Author, item.Genre, item.MediaType, item.CopiesTotal, item.CopiesAvailable,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	if err := replaceTags(ctx, tx, item.ID, item.Tags); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing item: %w", err)
	}

	return GetItem(ctx, db, item.ID)
}

// GetItem returns an item by ID with its tags and waitlist, or nil if absent.
func GetItem(ctx context.Context, db *sql.DB, id string) (*model.Item, error) {
	id = model.NormalizeItemID(id)
	item := &model.Item{}
	var imageMime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT id, title, author, genre, media_type, copies_total, copies_available, avg_rating, image_mime, created_at
		 FROM items WHERE id = ?`, id,
	).Scan(&item.ID, &item.Title, &item.Author, &item.Genre, &item.MediaType,
		&item.CopiesTotal, &item.CopiesAvailable, &item.AvgRating, &imageMime, &item.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	item.ImageMime = imageMime.String

	if item.Tags, err = itemTags(ctx, db, id); err != nil {
		return nil, err
	}
	if item.Waitlist, err = GetWaitlist(ctx, db, id); err != nil {
		return nil, err
	}
	return item, nil
}

// ListItems returns all catalog items ordered by ID.
func ListItems(ctx context.Context, db *sql.DB) ([]model.Item, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, title, author, genre, media_type, copies_total, copies_available, avg_rating, image_mime, created_at
		 FROM items ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		var item model.Item
		var imageMime sql.NullString
		if err := rows.Scan(&item.ID, &item.Title, &item.Author, &item.Genre, &item.MediaType,
			&item.CopiesTotal, &item.CopiesAvailable, &item.AvgRating, &imageMime, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		item.ImageMime = imageMime.String
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range items {
		if items[i].Tags, err = itemTags(ctx, db, items[i].ID); err != nil {
			return nil, err
		}
		if items[i].Waitlist, err = GetWaitlist(ctx, db, items[i].ID); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// SearchItems filters the catalog: substring match against title or author,
// substring match on author alone, exact genre match and an optional
// availability filter. Both the filters and the stored fields are folded, so
// "cafe" matches a stored "Café".
func SearchItems(ctx context.Context, db *sql.DB, query, author, genre string, available *bool) ([]model.Item, error) {
	items, err := ListItems(ctx, db)
	if err != nil {
		return nil, err
	}

	q := search.Fold(query)
	a := search.Fold(author)
	g := search.Fold(genre)

	var results []model.Item
	for _, item := range items {
		title := search.Fold(item.Title)
		auth := search.Fold(item.Author)

		if q != "" && !strings.Contains(title, q) && !strings.Contains(auth, q) {
			continue
		}
		if a != "" && !strings.Contains(auth, a) {
			continue
		}
		if g != "" && g != search.Fold(item.Genre) {
			continue
		}
		if available != nil && *available != item.Available() {
			continue
		}
		results = append(results, item)
	}
	return results, nil
}

// IsTitleAvailable reports whether any catalog item with the given title has
// a copy available. Unknown titles are simply unavailable.
func IsTitleAvailable(ctx context.Context, db *sql.DB, title string) (bool, error) {
	items, err := ListItems(ctx, db)
	if err != nil {
		return false, err
	}
	want := search.Fold(title)
	for _, item := range items {
		if search.Fold(item.Title) == want {
			return item.Available(), nil
		}
	}
	return false, nil
}

// UpdateItem updates an item's metadata and replaces its tag set.
func UpdateItem(ctx context.Context, db *sql.DB, id, title, author, genre string, tags []string) error {
	id = model.NormalizeItemID(id)
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: title cannot be empty", model.ErrValidation)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE items SET title = ?, author = ?, genre = ? WHERE id = ?`,
		title, author, genre, id,
	)
	if err != nil {
		return fmt.Errorf("updating item: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: item %s", model.ErrNotFound, id)
	}

	if err := replaceTags(ctx, tx, id, tags); err != nil {
		return err
	}
	return tx.Commit()
}

// SetItemImage stores an item's cover image.
func SetItemImage(ctx context.Context, db *sql.DB, id string, image []byte, mime string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE items SET image = ?, image_mime = ? WHERE id = ?`,
		image, mime, model.NormalizeItemID(id),
	)
	if err != nil {
		return fmt.Errorf("setting item image: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: item %s", model.ErrNotFound, id)
	}
	return nil
}

// GetItemImage returns an item's cover image data and MIME type.
func GetItemImage(ctx context.Context, db *sql.DB, id string) ([]byte, string, error) {
	var image []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT image, image_mime FROM items WHERE id = ?`, model.NormalizeItemID(id),
	).Scan(&image, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting item image: %w", err)
	}
	return image, mime.String, nil
}

// GetWaitlist returns an item's waitlist member IDs in FIFO order.
func GetWaitlist(ctx context.Context, db *sql.DB, itemID string) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT member_id FROM waitlist WHERE item_id = ? ORDER BY id`, model.NormalizeItemID(itemID),
	)
	if err != nil {
		return nil, fmt.Errorf("getting waitlist: %w", err)
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning waitlist entry: %w", err)
		}
		members = append(members, id)
	}
	return members, rows.Err()
}

func itemTags(ctx context.Context, db *sql.DB, itemID string) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT tag FROM item_tags WHERE item_id = ? ORDER BY tag`, itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("getting item tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("scanning tag: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

func replaceTags(ctx context.Context, tx *sql.Tx, itemID string, tags []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM item_tags WHERE item_id = ?`, itemID); err != nil {
		return fmt.Errorf("clearing item tags: %w", err)
	}
	for _, tag := range tags {
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO item_tags (item_id, tag) VALUES (?, ?)`, itemID, tag)
		if err != nil {
			return fmt.Errorf("inserting item tag: %w", err)
		}
	}
	return nil
}
