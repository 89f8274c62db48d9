//	@title			DocBuddy API
//	@version		1.0
//	@description	DocBuddy indexes a document into a vector database and answers questions about it
//	@termsOfService	https://github.com/compozy/docbuddy

//	@contact.name	DocBuddy Support
//	@contact.url	https://github.com/compozy/docbuddy

//	@license.name	MIT
//	@license.url	https://github.com/compozy/docbuddy/blob/main/LICENSE

//	@BasePath	/api/v0

//	@tag.name			sessions
//	@tag.description	Document upload, embedding and chat sessions

//	@tag.name			Operations
//	@tag.description	Operational endpoints for monitoring and health

package main

import (
	"os"

	"github.com/compozy/docbuddy/cli"
)

func main() {
	if err := cli.RootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
