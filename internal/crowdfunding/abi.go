package crowdfunding

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Contract function and event names.
const (
	MethodCreateProject    = "createProject"
	MethodGetProjects      = "getProjects"
	MethodGetProject       = "getProject"
	MethodFundProject      = "fundProject"
	MethodWithdrawFunds    = "withdrawFunds"
	MethodDeleteProject    = "deleteProject"
	MethodGetBackers       = "getBackers"
	MethodIsProjectCreator = "isProjectCreator"
	MethodIsProjectBacker  = "isProjectBacker"
	MethodGetUserProjects  = "getUserProjects"
	MethodGetBackerInfo    = "getBackerInfo"

	EventProjectCreated = "ProjectCreated"
	EventProjectFunded  = "ProjectFunded"
	EventFundsWithdrawn = "FundsWithdrawn"
	EventProjectDeleted = "ProjectDeleted"
)

const projectTuple = `{"type":"tuple","name":"","internalType":"struct Crowdfunding.Project","components":[
	{"name":"id","type":"uint256"},
	{"name":"title","type":"string"},
	{"name":"description","type":"string"},
	{"name":"fundingGoal","type":"uint256"},
	{"name":"currentFunding","type":"uint256"},
	{"name":"deadline","type":"uint256"},
	{"name":"imageUrl","type":"string"},
	{"name":"category","type":"string"},
	{"name":"creator","type":"address"},
	{"name":"isFunded","type":"bool"},
	{"name":"isExpired","type":"bool"}]}`

const projectTupleArray = `{"type":"tuple[]","name":"","internalType":"struct Crowdfunding.Project[]","components":[
	{"name":"id","type":"uint256"},
	{"name":"title","type":"string"},
	{"name":"description","type":"string"},
	{"name":"fundingGoal","type":"uint256"},
	{"name":"currentFunding","type":"uint256"},
	{"name":"deadline","type":"uint256"},
	{"name":"imageUrl","type":"string"},
	{"name":"category","type":"string"},
	{"name":"creator","type":"address"},
	{"name":"isFunded","type":"bool"},
	{"name":"isExpired","type":"bool"}]}`

const projectIDInput = `[{"name":"_projectId","type":"uint256"}]`

// ABIJSON is the deployed marketplace contract interface.
const ABIJSON = `[
{"type":"function","name":"createProject","stateMutability":"nonpayable","inputs":[
	{"name":"_title","type":"string"},
	{"name":"_description","type":"string"},
	{"name":"_fundingGoal","type":"uint256"},
	{"name":"_deadline","type":"uint256"},
	{"name":"_imageUrl","type":"string"},
	{"name":"_category","type":"string"}],
	"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"getProjects","stateMutability":"view","inputs":[],"outputs":[` + projectTupleArray + `]},
{"type":"function","name":"getProject","stateMutability":"view","inputs":` + projectIDInput + `,"outputs":[` + projectTuple + `]},
{"type":"function","name":"fundProject","stateMutability":"payable","inputs":` + projectIDInput + `,"outputs":[]},
{"type":"function","name":"withdrawFunds","stateMutability":"nonpayable","inputs":` + projectIDInput + `,"outputs":[]},
{"type":"function","name":"deleteProject","stateMutability":"nonpayable","inputs":` + projectIDInput + `,"outputs":[]},
{"type":"function","name":"getBackers","stateMutability":"view","inputs":` + projectIDInput + `,"outputs":[
	{"type":"tuple[]","name":"","internalType":"struct Crowdfunding.Backer[]","components":[
		{"name":"backer","type":"address"},
		{"name":"amount","type":"uint256"},
		{"name":"timestamp","type":"uint256"}]}]},
{"type":"function","name":"isProjectCreator","stateMutability":"view","inputs":` + projectIDInput + `,"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"isProjectBacker","stateMutability":"view","inputs":` + projectIDInput + `,"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"getUserProjects","stateMutability":"view","inputs":[{"name":"_user","type":"address"}],"outputs":[{"name":"","type":"uint256[]"}]},
{"type":"function","name":"getBackerInfo","stateMutability":"view","inputs":[
	{"name":"_backer","type":"address"},
	{"name":"_projectId","type":"uint256"}],
	"outputs":[{"type":"tuple","name":"","internalType":"struct Crowdfunding.BackerInfo","components":[
		{"name":"amount","type":"uint256"},
		{"name":"hasBacked","type":"bool"}]}]},
{"type":"event","name":"ProjectCreated","anonymous":false,"inputs":[
	{"name":"projectId","type":"uint256","indexed":true},
	{"name":"creator","type":"address","indexed":true},
	{"name":"title","type":"string","indexed":false},
	{"name":"fundingGoal","type":"uint256","indexed":false},
	{"name":"deadline","type":"uint256","indexed":false}]},
{"type":"event","name":"ProjectFunded","anonymous":false,"inputs":[
	{"name":"projectId","type":"uint256","indexed":true},
	{"name":"backer","type":"address","indexed":true},
	{"name":"amount","type":"uint256","indexed":false}]},
{"type":"event","name":"FundsWithdrawn","anonymous":false,"inputs":[
	{"name":"projectId","type":"uint256","indexed":true},
	{"name":"creator","type":"address","indexed":true},
	{"name":"amount","type":"uint256","indexed":false}]},
{"type":"event","name":"ProjectDeleted","anonymous":false,"inputs":[
	{"name":"projectId","type":"uint256","indexed":true}]}
]`

var parsedABI = mustParseABI(ABIJSON)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic("crowdfunding: invalid contract abi: " + err.Error())
	}
	return parsed
}

// ABI returns the parsed contract interface.
func ABI() abi.ABI {
	return parsedABI
}
