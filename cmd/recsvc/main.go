// recsvc is the ad recommendation service.
//
// Serves personalized ad recommendations over HTTP and gRPC:
//   - personalized path: decayed profile of recent interactions, hybrid
//     scoring of unseen available ads, random diversity tail
//   - cold start path: trending, boosted and latest ads
//
// Results are cached per user in Redis.
package main

import (
	"fmt"
	"os"

	"github.com/NeoCraftTeam/ImmoApp-Backend-sub001/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
