package maintenance

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/pitwall/internal/models"
)

// importFile is the layout of a server import file:
//
//	servers:
//	  - name: Nordschleife Touristenfahrten
//	    region: Europe
//	    host: ac.example.com
//	    port: 9600
//	    max_players: 24
type importFile struct {
	Servers []models.Server `koanf:"servers"`
}

// ImportServers loads servers from a YAML file and inserts or updates them.
// Records with an id update the existing row, records without one are inserted.
// Nothing is written unless every record passes validation, and the records are
// stored in one transaction so a failed write leaves the database as it was.
func ImportServers(ctx context.Context, store Store, path string) (int, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return 0, fmt.Errorf("failed to load import file %s: %w", path, err)
	}

	var doc importFile
	if err := k.UnmarshalWithConf("", &doc, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return 0, fmt.Errorf("failed to decode import file %s: %w", path, err)
	}
	if len(doc.Servers) == 0 {
		return 0, fmt.Errorf("no servers found in %s", path)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	var errs []error
	for i, s := range doc.Servers {
		if err := validate.Struct(s); err != nil {
			errs = append(errs, fmt.Errorf("server #%d %q: %w", i+1, s.Name, err))
		}
	}
	if len(errs) > 0 {
		return 0, errors.Join(errs...)
	}

	ids, err := store.UpsertServers(ctx, doc.Servers)
	if err != nil {
		return 0, fmt.Errorf("failed to save servers: %w", err)
	}

	for i, id := range ids {
		log.Debug().Int64("server_id", id).Str("name", doc.Servers[i].Name).Msg("Server imported")
	}

	return len(ids), nil
}
