package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"runtime/pprof"

	"memnet"
	"memnet/matchtask"
)

var (
	cpuprofile = flag.String("cpuprofile", "", "write cpu profile to file")

	weightsChan    = make(chan chan []byte)
	lossChan       = make(chan chan []float64)
	printDebugChan = make(chan struct{})
)

func main() {
	flag.Parse()
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	http.HandleFunc("/Weights", func(w http.ResponseWriter, r *http.Request) {
		c := make(chan []byte)
		weightsChan <- c
		w.Write(<-c)
	})
	http.HandleFunc("/Loss", func(w http.ResponseWriter, r *http.Request) {
		c := make(chan []float64)
		lossChan <- c
		json.NewEncoder(w).Encode(<-c)
	})
	http.HandleFunc("/PrintDebug", func(w http.ResponseWriter, r *http.Request) {
		printDebugChan <- struct{}{}
	})
	port := 8088
	go func() {
		log.Printf("Listening on port %d", port)
		if err := http.ListenAndServe(fmt.Sprintf(":%d", port), nil); err != nil {
			log.Fatalf("%v", err)
		}
	}()

	var seed int64 = 7
	rand.Seed(seed)
	log.Printf("seed: %d", seed)

	inputSize := 10
	querySize := 9
	hiddenSize := 32
	nLayers := 2
	batchSize := 16
	numFacts := 6
	numQueries := 5
	m, err := memnet.NewModel(inputSize, querySize, hiddenSize, nLayers)
	if err != nil {
		log.Fatalf("%v", err)
	}
	ws := m.WeightsVal()
	for i := range ws {
		ws[i] = 0.2 * (rand.Float64() - 0.5)
	}

	losses := make([]float64, 0)
	doPrint := false

	rmsp := memnet.NewRMSProp(m)
	log.Printf("numweights: %d", m.NumWeights())
	for i := 1; ; i++ {
		facts, queries, labels := matchtask.GenSets(batchSize, numFacts, numQueries, inputSize, querySize)
		dm := &memnet.LogisticModel{Y: labels}
		pred, err := m.ForwardBackward(facts, queries, dm)
		if err != nil {
			log.Fatalf("%v", err)
		}
		rmsp.Update(0.95, 0.9, 1e-4, 1e-4)

		if i%100 == 0 {
			l := dm.Loss(pred) / float64(len(pred))
			losses = append(losses, l)
			log.Printf("%d, loss: %f, accuracy: %.3f", i, l, matchtask.Accuracy(pred, labels))
		}

		handleHTTP(m, losses, &doPrint)

		if i%100 == 0 && doPrint {
			printDebug(m, facts, queries)
		}
	}
}

func handleHTTP(m *memnet.Model, losses []float64, doPrint *bool) {
	select {
	case cn := <-weightsChan:
		b, err := json.Marshal(m.WeightsVal())
		if err != nil {
			log.Fatalf("%v", err)
		}
		cn <- b
	case cn := <-lossChan:
		cn <- losses
	case <-printDebugChan:
		*doPrint = !*doPrint
	default:
		return
	}
}

// printDebug logs the attention weights of the first batch instance, one
// matrix per hop.
func printDebug(m *memnet.Model, facts, queries *memnet.Tensor) {
	a, err := m.Addr.Address(facts, queries)
	if err != nil {
		log.Fatalf("%v", err)
	}
	for i, mask := range a.Masks() {
		rows := memnet.MakeTensor2(a.M, a.N)
		for r := 0; r < a.M; r++ {
			copy(rows[r], mask.Data[r*a.N:(r+1)*a.N])
		}
		log.Printf("hop %d weights: %s", i, memnet.Sprint2(rows))
	}
}
