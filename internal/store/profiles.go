package store

import (
	"database/sql"
	"fmt"
	"time"
)

// CreateProvider registers a model provider. SecretKey names an entry in the
// external secret store; the credential itself never lands in SQLite.
func (s *Store) CreateProvider(p Provider) (int64, error) {
	var id int64
	err := s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			INSERT INTO providers (name, kind, base_url, secret_key, default_model, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			p.Name, p.Kind, p.BaseURL, p.SecretKey, p.DefaultModel, time.Now().Unix())
		if err != nil {
			return fmt.Errorf("insert provider: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

func (s *Store) GetProvider(id int64) (Provider, error) {
	row := s.db.QueryRow(`
		SELECT id, name, kind, base_url, secret_key, default_model, created_at
		FROM providers WHERE id = ?`, id)
	return scanProvider(row, fmt.Sprintf("provider %d", id))
}

func (s *Store) GetProviderByName(name string) (Provider, error) {
	row := s.db.QueryRow(`
		SELECT id, name, kind, base_url, secret_key, default_model, created_at
		FROM providers WHERE name = ?`, name)
	return scanProvider(row, fmt.Sprintf("provider %q", name))
}

func scanProvider(row *sql.Row, what string) (Provider, error) {
	var p Provider
	var created int64
	err := row.Scan(&p.ID, &p.Name, &p.Kind, &p.BaseURL, &p.SecretKey, &p.DefaultModel, &created)
	if err == sql.ErrNoRows {
		return Provider{}, fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	if err != nil {
		return Provider{}, fmt.Errorf("get %s: %w", what, err)
	}
	p.CreatedAt = time.Unix(created, 0)
	return p, nil
}

func (s *Store) ListProviders() ([]Provider, error) {
	rows, err := s.db.Query(`
		SELECT id, name, kind, base_url, secret_key, default_model, created_at
		FROM providers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	defer rows.Close()

	var out []Provider
	for rows.Next() {
		var p Provider
		var created int64
		if err := rows.Scan(&p.ID, &p.Name, &p.Kind, &p.BaseURL, &p.SecretKey, &p.DefaultModel, &created); err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		p.CreatedAt = time.Unix(created, 0)
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreateProfile stores a named bundle of provider + model defaults. The
// provider must already exist; the FK makes a dangling profile impossible.
func (s *Store) CreateProfile(p Profile) (int64, error) {
	var id int64
	err := s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			INSERT INTO profiles (name, provider_id, model, system_prompt, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			p.Name, p.ProviderID, p.Model, p.SystemPrompt, time.Now().Unix())
		if err != nil {
			return fmt.Errorf("insert profile: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

func (s *Store) GetProfileByName(name string) (Profile, error) {
	row := s.db.QueryRow(`
		SELECT id, name, provider_id, model, system_prompt, created_at
		FROM profiles WHERE name = ?`, name)
	var p Profile
	var created int64
	err := row.Scan(&p.ID, &p.Name, &p.ProviderID, &p.Model, &p.SystemPrompt, &created)
	if err == sql.ErrNoRows {
		return Profile{}, fmt.Errorf("profile %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return Profile{}, fmt.Errorf("get profile: %w", err)
	}
	p.CreatedAt = time.Unix(created, 0)
	return p, nil
}

func (s *Store) ListProfiles() ([]Profile, error) {
	rows, err := s.db.Query(`
		SELECT id, name, provider_id, model, system_prompt, created_at
		FROM profiles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		var p Profile
		var created int64
		if err := rows.Scan(&p.ID, &p.Name, &p.ProviderID, &p.Model, &p.SystemPrompt, &created); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		p.CreatedAt = time.Unix(created, 0)
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreatePromptTemplate stores a reusable prompt body under a unique name.
func (s *Store) CreatePromptTemplate(name, content string) (int64, error) {
	var id int64
	err := s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			INSERT INTO prompt_templates (name, content, created_at)
			VALUES (?, ?, ?)`,
			name, content, time.Now().Unix())
		if err != nil {
			return fmt.Errorf("insert template: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

func (s *Store) GetPromptTemplate(name string) (PromptTemplate, error) {
	row := s.db.QueryRow(`
		SELECT id, name, content, created_at FROM prompt_templates WHERE name = ?`, name)
	var t PromptTemplate
	var created int64
	err := row.Scan(&t.ID, &t.Name, &t.Content, &created)
	if err == sql.ErrNoRows {
		return PromptTemplate{}, fmt.Errorf("template %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return PromptTemplate{}, fmt.Errorf("get template: %w", err)
	}
	t.CreatedAt = time.Unix(created, 0)
	return t, nil
}

func (s *Store) ListPromptTemplates() ([]PromptTemplate, error) {
	rows, err := s.db.Query(`
		SELECT id, name, content, created_at FROM prompt_templates ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []PromptTemplate
	for rows.Next() {
		var t PromptTemplate
		var created int64
		if err := rows.Scan(&t.ID, &t.Name, &t.Content, &created); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		t.CreatedAt = time.Unix(created, 0)
		out = append(out, t)
	}
	return out, rows.Err()
}
