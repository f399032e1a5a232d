package integrations

// Builtin returns the integrations shipped with Flowgent.
func Builtin() []Integration {
	return []Integration{
		{
			ID:          "slack",
			Name:        "Slack",
			Description: "Post messages and read channels in a Slack workspace.",
			AuthType:    AuthOAuth2,
			Scopes:      []string{"chat:write", "channels:read", "users:read"},
			Operations: map[string]Operation{
				"sendMessage": {
					Name: "Send message",
					Args: map[string]Arg{
						"channel":  {Type: ArgString, Label: "Channel", Required: true},
						"text":     {Type: ArgString, Label: "Message text", Required: true},
						"blocks":   {Type: ArgJSON, Label: "Blocks"},
						"threadTs": {Type: ArgString, Label: "Thread timestamp"},
					},
				},
				"listChannels": {
					Name: "List channels",
					Args: map[string]Arg{
						"limit":           {Type: ArgNumber, Label: "Limit"},
						"excludeArchived": {Type: ArgBoolean, Label: "Exclude archived"},
					},
				},
			},
		},
		{
			ID:          "google",
			Name:        "Google",
			Description: "Send Gmail messages and work with Google Sheets.",
			AuthType:    AuthOAuth2,
			Scopes: []string{
				"https://www.googleapis.com/auth/gmail.send",
				"https://www.googleapis.com/auth/spreadsheets",
				"https://www.googleapis.com/auth/userinfo.email",
			},
			Operations: map[string]Operation{
				"sendEmail": {
					Name: "Send email",
					Args: map[string]Arg{
						"to":      {Type: ArgArray, Label: "Recipients", Required: true},
						"subject": {Type: ArgString, Label: "Subject", Required: true},
						"body":    {Type: ArgString, Label: "Body", Required: true},
						"isHtml":  {Type: ArgBoolean, Label: "HTML body"},
					},
				},
				"appendRow": {
					Name: "Append spreadsheet row",
					Args: map[string]Arg{
						"spreadsheetId": {Type: ArgString, Label: "Spreadsheet ID", Required: true},
						"range":         {Type: ArgString, Label: "Range", Required: true},
						"values":        {Type: ArgArray, Label: "Values", Required: true},
					},
				},
			},
		},
		{
			ID:          "github",
			Name:        "GitHub",
			Description: "Open issues and read repositories on GitHub.",
			AuthType:    AuthOAuth2,
			Scopes:      []string{"repo", "read:user"},
			Operations: map[string]Operation{
				"createIssue": {
					Name: "Create issue",
					Args: map[string]Arg{
						"owner":  {Type: ArgString, Label: "Owner", Required: true},
						"repo":   {Type: ArgString, Label: "Repository", Required: true},
						"title":  {Type: ArgString, Label: "Title", Required: true},
						"body":   {Type: ArgString, Label: "Body"},
						"labels": {Type: ArgArray, Label: "Labels"},
					},
				},
				"getRepository": {
					Name: "Get repository",
					Args: map[string]Arg{
						"owner": {Type: ArgString, Label: "Owner", Required: true},
						"repo":  {Type: ArgString, Label: "Repository", Required: true},
					},
				},
			},
		},
		{
			ID:          "notion",
			Name:        "Notion",
			Description: "Create pages and query databases in Notion.",
			AuthType:    AuthOAuth2,
			// Notion grants access per page at consent time rather than by scope.
			Scopes: []string{},
			Operations: map[string]Operation{
				"createPage": {
					Name: "Create page",
					Args: map[string]Arg{
						"parentId":   {Type: ArgString, Label: "Parent page or database ID", Required: true},
						"properties": {Type: ArgJSON, Label: "Properties", Required: true},
						"children":   {Type: ArgArray, Label: "Content blocks"},
					},
				},
				"queryDatabase": {
					Name: "Query database",
					Args: map[string]Arg{
						"databaseId": {Type: ArgString, Label: "Database ID", Required: true},
						"filter":     {Type: ArgJSON, Label: "Filter"},
						"pageSize":   {Type: ArgNumber, Label: "Page size"},
					},
				},
			},
		},
		{
			ID:          "openai",
			Name:        "OpenAI",
			Description: "Generate text with OpenAI models.",
			AuthType:    AuthAPIKey,
			Operations: map[string]Operation{
				"chatCompletion": {
					Name: "Chat completion",
					Args: map[string]Arg{
						"model":       {Type: ArgString, Label: "Model", Required: true},
						"messages":    {Type: ArgArray, Label: "Messages", Required: true},
						"temperature": {Type: ArgNumber, Label: "Temperature"},
					},
				},
			},
		},
		{
			ID:          "http",
			Name:        "HTTP Request",
			Description: "Call any HTTP endpoint using basic authentication.",
			AuthType:    AuthBasic,
			Operations: map[string]Operation{
				"request": {
					Name: "Send request",
					Args: map[string]Arg{
						"method":  {Type: ArgString, Label: "Method", Required: true},
						"url":     {Type: ArgString, Label: "URL", Required: true},
						"headers": {Type: ArgJSON, Label: "Headers"},
						"body":    {Type: ArgJSON, Label: "Body"},
					},
				},
			},
		},
	}
}
