package main

import "github.com/Jordieboyz/commonswiki-bulk-downloader/cmd/cwbd/cmd"

func main() {
	cmd.Execute()
}
