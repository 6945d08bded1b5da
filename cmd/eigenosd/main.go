/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/amirewontmiss/eigenos/pkg/operator"
	"github.com/amirewontmiss/eigenos/pkg/operator/options"
	"github.com/amirewontmiss/eigenos/pkg/server"
)

func main() {
	opts := options.New().MustParse()

	config, err := operator.LoadConfig()
	if err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	op := operator.NewOperator(opts, config)
	op.Start(ctx)

	if err := server.New(op).Run(ctx); err != nil {
		op.Logger.Fatal().Err(err).Msg("server exited")
	}
}
