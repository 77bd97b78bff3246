package blueprint

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const issuesSDL = `
	type Query {
		issue(id: ID!): Issue
		issues(ids: [ID!]!): [Issue!]! @partition(pathToPartitionArg: ["ids"])
		ticket: Ticket
		issueQueries: IssueQueries @namespaced
	}

	type Mutation {
		closeIssues(input: CloseIssuesInput!): CloseIssuesPayload @partition(pathToPartitionArg: ["input", "ids"])
		moveIssue(id: ID!): Issue @partition(pathToPartitionArg: ["id"])
	}

	input CloseIssuesInput {
		ids: [ID!]!
	}

	type CloseIssuesPayload {
		success: Boolean!
		errors: [MutationError!]
		closed: [Issue!]
	}

	type MutationError {
		message: String!
	}

	type IssueQueries {
		byKey(key: String!): Issue
	}

	type Issue {
		id: ID!
		title: String @renamed(from: "summary")
		reporterName: String @renamed(from: "reporter.name")
		assignee: User @hydrated(service: "users", field: "user", arguments: [{name: "id", value: "$source.assigneeId"}])
		watchers: [User] @hydrated(service: "users", field: "user", arguments: [{name: "id", value: "$source.watcherIds"}])
		commenters(first: Int): [User] @hydrated(
			service: "users"
			field: "userQueries.byIds"
			arguments: [{name: "ids", value: "$source.commenterIds"}, {name: "first", value: "$argument.first"}]
			batchSize: 2
		)
	}

	type Ticket @renamed(from: "JiraTicket") {
		id: ID!
	}
`

const usersSDL = `
	type Query {
		user(id: ID!): User
		issueQueries: IssueQueries @namespaced
		userQueries: UserQueries @namespaced
	}

	type IssueQueries {
		byAssignee(id: ID!): [Issue]
	}

	type UserQueries {
		byIds(ids: [ID!]!, first: Int): [User]
	}

	type User @renamed(from: "Account") {
		id: ID!
		name: String
	}
`

func fixtureDefinitions() []*ServiceDefinition {
	return []*ServiceDefinition{
		{Name: "issues", URL: "http://issues", SDL: issuesSDL},
		{Name: "users", URL: "http://users", SDL: usersSDL},
	}
}

func mustLoad(t *testing.T, opts ...LoadOption) *Blueprint {
	t.Helper()

	bp, err := Load(fixtureDefinitions(), opts...)
	require.NoError(t, err)
	return bp
}
