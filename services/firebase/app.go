// Package firebase builds the Firebase app shared by the firestore store and the auth provider.
package firebase

import (
	"context"

	firebase "firebase.google.com/go/v4"
	"github.com/pkg/errors"
	"google.golang.org/api/option"

	"github.com/trezcool/homeroom/core"
)

// NewApp initializes a Firebase app from the configured project and credentials file.
// Without a credentials file, the application default credentials are used.
func NewApp(ctx context.Context, conf *core.Config) (*firebase.App, error) {
	var opts []option.ClientOption
	if conf.Database.FirebaseCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(conf.Database.FirebaseCredentialsFile))
	}

	var fbConf *firebase.Config
	if conf.Database.FirebaseProjectID != "" {
		fbConf = &firebase.Config{ProjectID: conf.Database.FirebaseProjectID}
	}

	app, err := firebase.NewApp(ctx, fbConf, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "initializing firebase app")
	}
	return app, nil
}
