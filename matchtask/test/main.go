package main

import (
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"os"

	"memnet"
	"memnet/matchtask"
)

var (
	weightsFile = flag.String("weightsFile", "", "trained weights in JSON")
)

func main() {
	flag.Parse()
	rand.Seed(11)

	inputSize := 10
	querySize := 9
	hiddenSize := 32
	nLayers := 2
	m, err := memnet.NewModel(inputSize, querySize, hiddenSize, nLayers)
	if err != nil {
		log.Fatalf("%v", err)
	}
	copy(m.WeightsVal(), weightsFromFile(m.NumWeights()))

	for _, numFacts := range []int{4, 6, 12, 24} {
		facts, queries, labels := matchtask.GenSets(64, numFacts, 5, inputSize, querySize)
		pred, err := m.Predict(facts, queries)
		if err != nil {
			log.Fatalf("%v", err)
		}
		dm := &memnet.LogisticModel{Y: labels}
		l := dm.Loss(pred) / float64(len(pred))
		log.Printf("facts: %d, loss: %f, accuracy: %.3f", numFacts, l, matchtask.Accuracy(pred, labels))
	}
}

func weightsFromFile(numWeights int) []float64 {
	if *weightsFile == "" {
		log.Fatalf("no weights file specified")
	}
	f, err := os.Open(*weightsFile)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer f.Close()
	var ws []float64
	if err := json.NewDecoder(f).Decode(&ws); err != nil {
		log.Fatalf("%v", err)
	}
	if len(ws) != numWeights {
		log.Fatalf("expected %d weights, got %d", numWeights, len(ws))
	}
	return ws
}
