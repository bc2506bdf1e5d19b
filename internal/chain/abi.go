package chain

const (
	BettingABI = `[
		{"inputs":[{"name":"amount","type":"uint256"},{"name":"timeLimit","type":"uint256"},{"name":"boostLimit","type":"uint256"},{"name":"gameType","type":"string"}],"name":"createBet","outputs":[{"name":"","type":"uint256"}],"stateMutability":"payable","type":"function"},
		{"inputs":[{"name":"betId","type":"uint256"}],"name":"acceptBet","outputs":[{"name":"","type":"bool"}],"stateMutability":"payable","type":"function"},
		{"inputs":[{"name":"betId","type":"uint256"}],"name":"cancelBet","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
		{"inputs":[{"name":"betId","type":"uint256"},{"name":"winner","type":"address"}],"name":"completeBet","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
		{"inputs":[{"name":"betId","type":"uint256"}],"name":"activateBoost","outputs":[{"name":"","type":"bool"}],"stateMutability":"payable","type":"function"},
		{"inputs":[{"name":"betId","type":"uint256"}],"name":"getBet","outputs":[{"components":[
			{"name":"id","type":"uint256"},
			{"name":"creator","type":"address"},
			{"name":"acceptor","type":"address"},
			{"name":"amount","type":"uint256"},
			{"name":"timeLimit","type":"uint256"},
			{"name":"boostLimit","type":"uint256"},
			{"name":"gameType","type":"string"},
			{"name":"status","type":"uint8"},
			{"name":"createdAt","type":"uint256"},
			{"name":"acceptedAt","type":"uint256"}
		],"name":"","type":"tuple"}],"stateMutability":"view","type":"function"},
		{"inputs":[],"name":"getActiveBets","outputs":[{"name":"","type":"uint256[]"}],"stateMutability":"view","type":"function"},
		{"inputs":[{"name":"user","type":"address"}],"name":"getUserBets","outputs":[{"name":"","type":"uint256[]"}],"stateMutability":"view","type":"function"},
		{"inputs":[{"name":"betId","type":"uint256"}],"name":"getBoostCost","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
		{"anonymous":false,"inputs":[
			{"indexed":true,"name":"betId","type":"uint256"},
			{"indexed":true,"name":"creator","type":"address"},
			{"indexed":false,"name":"amount","type":"uint256"},
			{"indexed":false,"name":"gameType","type":"string"}
		],"name":"BetCreated","type":"event"},
		{"anonymous":false,"inputs":[
			{"indexed":true,"name":"betId","type":"uint256"},
			{"indexed":true,"name":"acceptor","type":"address"}
		],"name":"BetAccepted","type":"event"},
		{"anonymous":false,"inputs":[
			{"indexed":true,"name":"betId","type":"uint256"},
			{"indexed":true,"name":"winner","type":"address"},
			{"indexed":false,"name":"amount","type":"uint256"}
		],"name":"BetCompleted","type":"event"},
		{"anonymous":false,"inputs":[
			{"indexed":true,"name":"betId","type":"uint256"}
		],"name":"BetCancelled","type":"event"},
		{"anonymous":false,"inputs":[
			{"indexed":true,"name":"betId","type":"uint256"},
			{"indexed":true,"name":"player","type":"address"}
		],"name":"BoostActivated","type":"event"}
	]`

	TokenABI = `[
		{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
		{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
		{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"}
	]`
)
