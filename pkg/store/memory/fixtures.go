package memory

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Fixtures is the YAML shape accepted by LoadFixtures.
//
//	users:
//	  - {id: 1, name: Ana, email: ana@x.io}
//	posts:
//	  - {id: 10, user_id: 1, title: Lost cat, description: Grey tabby}
type Fixtures struct {
	Users []User `yaml:"users"`
	Posts []Post `yaml:"posts"`
}

// LoadFixtures reads YAML fixtures into the store.
func (s *Store) LoadFixtures(r io.Reader) error {
	var f Fixtures
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("failed to decode fixtures: %w", err)
	}
	for _, u := range f.Users {
		s.AddUser(u)
	}
	for _, p := range f.Posts {
		s.AddPost(p)
	}
	return nil
}

// LoadFixturesFile reads YAML fixtures from path.
func (s *Store) LoadFixturesFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open fixtures: %w", err)
	}
	defer file.Close()
	return s.LoadFixtures(file)
}
